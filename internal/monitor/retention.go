package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/logging"
	"github.com/stackpulse/stackpulse/internal/metrics"
	"github.com/stackpulse/stackpulse/internal/metricstore"
	mainlogging "github.com/stackpulse/stackpulse/pkg/logging"
)

// Pruner drops tracking state that ended before cutoff
type Pruner interface {
	Prune(cutoff time.Time) int
}

// RetentionConfig holds configuration for the retention sweeper
type RetentionConfig struct {
	Store     interfaces.MetricStore
	Metrics   *metrics.Collector
	Pruners   []Pruner
	Retention time.Duration // defaults to metricstore.Retention
	Interval  time.Duration // defaults to 1h
	Now       func() time.Time
}

// RetentionSweeper periodically expires samples older than the retention window
type RetentionSweeper struct {
	store     interfaces.MetricStore
	metrics   *metrics.Collector
	pruners   []Pruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *logging.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRetentionSweeper creates a sweeper
func NewRetentionSweeper(cfg RetentionConfig) *RetentionSweeper {
	if cfg.Retention <= 0 {
		cfg.Retention = metricstore.Retention
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RetentionSweeper{
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		pruners:   cfg.Pruners,
		retention: cfg.Retention,
		interval:  cfg.Interval,
		now:       cfg.Now,
		logger:    logging.NewLogger("RetentionSweeper"),
	}
}

// Sweep expires samples older than now minus the retention window
func (s *RetentionSweeper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	cutoff := s.now().Add(-s.retention)

	removed, err := s.store.Expire(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep failed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordSamplesExpired(removed)
	}

	// Lock state is dropped once the lock has been over for a full interval
	for _, p := range s.pruners {
		p.Prune(s.now().Add(-s.interval))
	}

	mainlogging.SweepComplete(removed, time.Since(start))
	return removed, nil
}

// Start runs an immediate sweep and then one per interval
func (s *RetentionSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("retention sweeper already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweepAndLog(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepAndLog(ctx)
			}
		}
	}()

	s.logger.Infof("Started with retention %v, sweep interval %v", s.retention, s.interval)
	return nil
}

// Stop stops the sweeper and waits for an in-flight sweep
func (s *RetentionSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("retention sweeper shutdown timeout: %w", ctx.Err())
	}
}

func (s *RetentionSweeper) sweepAndLog(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Errorf("%v", err)
	}
}
