package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gcbaptista/package-search/internal/source"
)

// Scheduler periodically refreshes the engine from a source, or just rebuilds
// it when no source is configured. Failures are logged and retried on the next tick.
type Scheduler struct {
	engine   *Engine
	source   source.Source
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. src may be nil.
func NewScheduler(engine *Engine, src source.Source, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		source:   src,
		interval: interval,
		logger:   engine.logger.With("task", "scheduler"),
	}
}

// Start launches the scheduler loop in the background. It is a no-op when the
// interval is not positive or the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("periodic rebuild disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx, s.stopCh)
	s.logger.Info("scheduler started", "interval", s.interval)
}

// Stop halts the loop and waits for an in-progress tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduled refresh or rebuild synchronously.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.source != nil {
		if _, err := s.engine.Refresh(ctx, s.source); err != nil {
			s.logger.Error("scheduled refresh failed", "source", s.source.Name(), "error", err)
		}
		return
	}
	if _, err := s.engine.Rebuild(ctx); err != nil {
		s.engine.recordRebuildFailure()
		s.logger.Error("scheduled rebuild failed", "error", err)
	}
}
