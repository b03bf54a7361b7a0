package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/chaitanya5469/CodePilot/internal/db"
	"github.com/chaitanya5469/CodePilot/internal/ratelimit"
	"github.com/chaitanya5469/CodePilot/internal/review"
	"github.com/chaitanya5469/CodePilot/internal/room"
)

// Read-only view of live sessions
type Sessions interface {
	GetRoomCount() int
	GetClientCount() int
	GetActiveRooms() map[string]int
	Sessions() map[string]room.Info
	Document(sessionID string) (string, bool)
}

type Reviewer interface {
	Review(ctx context.Context, code string) ([]review.Suggestion, error)
}

type API struct {
	sessions      Sessions
	database      *db.Database
	reviewer      Reviewer
	reviewLimits  *ratelimit.ClientLimiters
	keepAutoSaves int
}

type Options struct {
	Reviewer      Reviewer
	ReviewLimits  *ratelimit.ClientLimiters
	KeepAutoSaves int
}

func New(sessions Sessions, database *db.Database, opts Options) *API {
	return &API{
		sessions:      sessions,
		database:      database,
		reviewer:      opts.Reviewer,
		reviewLimits:  opts.ReviewLimits,
		keepAutoSaves: opts.KeepAutoSaves,
	}
}

// Routes registers every HTTP endpoint on r
func (a *API) Routes(r *mux.Router) {
	r.HandleFunc("/", a.RootHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/sessions", a.SessionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/review", a.ReviewHandler).Methods(http.MethodPost)

	r.HandleFunc("/api/versions", a.ListVersionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/versions", a.CreateVersionHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/versions/diff", a.DiffVersionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/versions/{id:[0-9]+}", a.GetVersionHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/versions/{id:[0-9]+}", a.DeleteVersionHandler).Methods(http.MethodDelete)
	r.HandleFunc("/api/versions/{id:[0-9]+}/restore", a.RestoreVersionHandler).Methods(http.MethodPost)
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Code Review Server is running"))
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_sessions":    a.sessions.GetRoomCount(),
		"active_connections": a.sessions.GetClientCount(),
		"session_occupancy":  a.sessions.GetActiveRooms(),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			stats["stored_versions"] = dbStats["version_count"]
			stats["versioned_sessions"] = dbStats["session_count"]
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

type sessionUser struct {
	ID       string `json:"id"`
	Color    string `json:"color"`
	Name     string `json:"name"`
	SocketID string `json:"socketId"`
}

type sessionSummary struct {
	UserCount      int           `json:"userCount"`
	Users          []sessionUser `json:"users"`
	CodeLength     int           `json:"codeLength"`
	OwnershipCount int           `json:"ownershipCount"`
}

// SessionsHandler dumps every live session for operational inspection
func (a *API) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]sessionSummary)
	for id, info := range a.sessions.Sessions() {
		users := make([]sessionUser, len(info.Users))
		for i, p := range info.Users {
			users[i] = sessionUser{ID: p.ConnectionID, Color: p.Color, Name: p.Name, SocketID: p.ConnectionID}
		}
		out[id] = sessionSummary{
			UserCount:      info.UserCount,
			Users:          users,
			CodeLength:     info.CodeLength,
			OwnershipCount: info.OwnershipCount,
		}
	}
	jsonResponse(w, http.StatusOK, out)
}

type ReviewRequest struct {
	Code string `json:"code"`
}

func (a *API) ReviewHandler(w http.ResponseWriter, r *http.Request) {
	if a.reviewLimits != nil && !a.reviewLimits.Allow(clientAddr(r)) {
		errorResponse(w, http.StatusTooManyRequests, "Too many review requests")
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		errorResponse(w, http.StatusBadRequest, "No code provided")
		return
	}

	if a.reviewer == nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to review code")
		return
	}

	suggestions, err := a.reviewer.Review(r.Context(), req.Code)
	if err != nil {
		log.Printf("Review error: %v", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to review code")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WithCORS allows browser clients from any origin
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
