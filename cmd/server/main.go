package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/chaitanya5469/CodePilot/internal/api"
	"github.com/chaitanya5469/CodePilot/internal/config"
	"github.com/chaitanya5469/CodePilot/internal/db"
	"github.com/chaitanya5469/CodePilot/internal/ratelimit"
	"github.com/chaitanya5469/CodePilot/internal/retention"
	"github.com/chaitanya5469/CodePilot/internal/review"
	"github.com/chaitanya5469/CodePilot/internal/room"
	"github.com/chaitanya5469/CodePilot/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	hub := ws.NewHub(room.NewRegistry(), cfg.Verbose)
	go hub.Run()
	defer hub.Stop()

	pruner := retention.New(database, retention.Config{
		Interval:       cfg.Retention.Interval,
		KeepAutoSaves:  cfg.Retention.KeepAutoSaves,
		SessionsPerRun: cfg.Retention.SessionsPerRun,
	})
	pruner.Start()
	defer pruner.Stop()

	if cfg.Review.APIKey == "" {
		log.Println("⚠️ HF_API_KEY is not set, review requests will be rejected upstream")
	}
	reviewer := review.New(cfg.Review.Endpoint, cfg.Review.Model, cfg.Review.APIKey,
		&http.Client{Timeout: cfg.Review.Timeout})

	reviewLimits := ratelimit.NewClientLimiters(cfg.Review.RequestsPerMinute/60, cfg.Review.Burst)
	defer reviewLimits.Stop()

	apiHandler := api.New(hub, database, api.Options{
		Reviewer:      reviewer,
		ReviewLimits:  reviewLimits,
		KeepAutoSaves: cfg.Retention.KeepAutoSaves,
	})

	limits := ws.Limits{
		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, limits, w, r)
	})
	apiHandler.Routes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.WithCORS(router),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 CodePilot server starting on :%s", cfg.Port)
	log.Printf("📁 Database: %s", cfg.DBPath)
	log.Printf("🤖 Review model: %s", cfg.Review.Model)
	log.Println("Endpoints:")
	log.Println("  - WebSocket: /ws")
	log.Println("  - Status:    GET /")
	log.Println("  - Health:    GET /health")
	log.Println("  - Stats:     GET /api/stats")
	log.Println("  - Sessions:  GET /sessions")
	log.Println("  - Review:    POST /review")
	log.Println("  - Versions:  GET/POST /api/versions")
	log.Println("  - Version:   GET/DELETE /api/versions/{id}")
	log.Println("  - Diff:      GET /api/versions/diff?from=X&to=Y")
	log.Println("  - Restore:   POST /api/versions/{id}/restore")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("ListenAndServe: ", err)
	}
}
