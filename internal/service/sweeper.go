package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/repository"
)

// SweeperConfig holds configuration for the expiry sweeper.
type SweeperConfig struct {
	// Interval is how often the sweep runs.
	// Default: 1 minute
	Interval time.Duration
}

// ExpirySweeper periodically releases the reserved cards of pending
// sessions whose decision window elapsed and records them as expired. Each
// session is swept under the same atomicity contract as a rejection, so a
// user resolving a session mid-sweep never races the cleanup.
type ExpirySweeper struct {
	store     repository.PackStore
	config    SweeperConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewExpirySweeper creates an expiry sweeper.
func NewExpirySweeper(store repository.PackStore, config SweeperConfig) *ExpirySweeper {
	if config.Interval == 0 {
		config.Interval = time.Minute
	}
	return &ExpirySweeper{
		store:  store,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *ExpirySweeper) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[ExpirySweeper] Started - Interval: %v", s.config.Interval)

	go s.run()
}

func (s *ExpirySweeper) run() {
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopCh:
			log.Printf("[ExpirySweeper] Stopped")
			return
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	expired, err := s.store.ExpireStale(ctx, time.Now())
	if err != nil {
		log.Printf("[ExpirySweeper] Error during sweep: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("[ExpirySweeper] Expired %d stale sessions", expired)
	}
}

// Stop stops the sweeper.
func (s *ExpirySweeper) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow triggers an immediate sweep and returns how many sessions expired.
func (s *ExpirySweeper) RunNow(ctx context.Context) (int64, error) {
	return s.store.ExpireStale(ctx, time.Now())
}
