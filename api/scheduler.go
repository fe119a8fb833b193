/*
scheduler.go - Stale request sweeper

PURPOSE:
  Periodically expires pending approval requests that nobody resolved.
  A request for a day weeks in the past is noise in every pending list
  and a stale grant risk, so it is swept to the expired state on a
  timer.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Delegates the actual sweep to the approval engine
  - Stop blocks until the goroutine exits

USAGE:
  sweeper := api.NewSweeper(engine, 72*time.Hour, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - approval/engine.go: ExpireStale
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/standup/attendance-engine/approval"
)

// Sweeper expires stale pending requests on an interval.
type Sweeper struct {
	Engine        *approval.Engine
	MaxAge        time.Duration
	CheckInterval time.Duration

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSweeper(engine *approval.Engine, maxAge time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		Engine:        engine,
		MaxAge:        maxAge,
		CheckInterval: time.Hour,
		log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the sweeper.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.log.Info("request sweeper started",
		zap.Duration("check_interval", s.CheckInterval),
		zap.Duration("max_age", s.MaxAge))
}

// Stop halts the sweeper and waits for the goroutine to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.log.Info("request sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.Engine.ExpireStale(ctx, s.MaxAge)
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
		return
	}
	if len(expired) > 0 {
		s.log.Info("expired stale requests", zap.Int("count", len(expired)))
	}
}
