package lifecycle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/store"
)

// SchedulerConfig configures the retention scheduler. An interval <= 0 or an
// empty tenant list disables the scheduler entirely, per spec.md §4.7.
type SchedulerConfig struct {
	Interval time.Duration
	Tenants  []string // "*" resolves to store.ListTenants at each tick
}

// RetentionScheduler runs Engine.Apply for every configured tenant, once per
// Interval, each tenant in its own transaction via Engine.Apply.
type RetentionScheduler struct {
	engine *Engine
	store  store.Store
	cfg    SchedulerConfig
	logger observability.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler builds a RetentionScheduler.
func NewScheduler(engine *Engine, st store.Store, cfg SchedulerConfig, logger observability.Logger) *RetentionScheduler {
	return &RetentionScheduler{engine: engine, store: st, cfg: cfg, logger: logger}
}

// Start spawns the scheduler goroutine. A no-op when the scheduler is
// disabled (Interval <= 0 or no tenants configured) or already running.
func (s *RetentionScheduler) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 || len(s.cfg.Tenants) == 0 {
		s.logger.Info("retention scheduler disabled", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.run(runCtx)
	}()
	s.logger.Info("retention scheduler started", map[string]interface{}{"interval_seconds": s.cfg.Interval.Seconds()})
}

// Stop signals cancellation and waits for the scheduler goroutine to exit.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *RetentionScheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *RetentionScheduler) runOnce(ctx context.Context) {
	tenants, err := s.resolveTenants(ctx)
	if err != nil {
		s.logger.Error("retention scheduler failed to resolve tenants", map[string]interface{}{"error": err.Error()})
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			if _, err := s.engine.Apply(gctx, tenant, nil, false); err != nil {
				s.logger.Error("retention scheduler tick failed", map[string]interface{}{"tenant_id": tenant, "error": err.Error()})
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *RetentionScheduler) resolveTenants(ctx context.Context) ([]string, error) {
	for _, t := range s.cfg.Tenants {
		if t == "*" {
			tx, err := s.store.Begin(ctx)
			if err != nil {
				return nil, err
			}
			defer func() { _ = tx.Rollback() }()
			return s.store.ListTenants(ctx, tx)
		}
	}
	return s.cfg.Tenants, nil
}
