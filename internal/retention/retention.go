package retention

import (
	"log"
	"sync"
	"time"
)

// Store is the part of the versions database the pruner needs
type Store interface {
	ListSessionIDs(limit int) ([]string, error)
	DeleteOldAutoVersions(sessionID string, keepCount int) (int, error)
}

type Config struct {
	Interval       time.Duration
	KeepAutoSaves  int
	SessionsPerRun int
}

func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Minute,
		KeepAutoSaves:  20,
		SessionsPerRun: 1000,
	}
}

// Service periodically trims auto-saved versions down to the newest
// KeepAutoSaves per session. Manual versions are never touched.
type Service struct {
	store  Store
	config Config
	stop   chan struct{}
	wg     sync.WaitGroup

	stopOnce sync.Once
}

func New(store Store, config Config) *Service {
	return &Service{
		store:  store,
		config: config,
		stop:   make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("🗜️ Retention service started (interval: %v, keep: %d auto-saves)",
		s.config.Interval, s.config.KeepAutoSaves)
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		log.Println("🗜️ Retention service stopped")
	})
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.RunNow()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.RunNow()
		}
	}
}

// RunNow prunes every known session once and returns the number of versions removed
func (s *Service) RunNow() int {
	sessions, err := s.store.ListSessionIDs(s.config.SessionsPerRun)
	if err != nil {
		log.Printf("Retention: failed to list sessions: %v", err)
		return 0
	}

	total := 0
	for _, id := range sessions {
		removed, err := s.store.DeleteOldAutoVersions(id, s.config.KeepAutoSaves)
		if err != nil {
			log.Printf("Retention: failed for session %s: %v", id, err)
			continue
		}
		total += removed
	}

	if total > 0 {
		log.Printf("🗜️ Pruned %d auto-saved versions across %d sessions", total, len(sessions))
	}
	return total
}
