// Package system assembles StackPulse components from configuration
package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/stackpulse/stackpulse/internal/analytics"
	"github.com/stackpulse/stackpulse/internal/config"
	"github.com/stackpulse/stackpulse/internal/deployment"
	"github.com/stackpulse/stackpulse/internal/events"
	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/lockout"
	"github.com/stackpulse/stackpulse/internal/metrics"
	"github.com/stackpulse/stackpulse/internal/monitor"
	"github.com/stackpulse/stackpulse/internal/probe"
)

// BackgroundSystem holds every long-lived component of a server process
type BackgroundSystem struct {
	Config          *config.ServerConfig
	Events          *events.EventBus
	Metrics         *metrics.Collector
	DeploymentStore interfaces.DeploymentStore
	MetricStore     interfaces.MetricStore
	Archiver        interfaces.Archiver // nil when archiving is disabled
	Deployments     *deployment.Service
	Aggregator      *analytics.Aggregator
	Trends          *analytics.TrendCalculator
	Lockout         *lockout.Guard
	Dispatcher      interfaces.ProbeDispatcher
	Monitor         *monitor.HealthMonitor
	Sweeper         *monitor.RetentionSweeper
}

// NewBackgroundSystem creates every component described by cfg using factory
func NewBackgroundSystem(cfg *config.ServerConfig, factory interfaces.ComponentFactory) (*BackgroundSystem, error) { //nolint:funlen // Linear component assembly
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if factory == nil {
		factory = NewDefaultComponentFactory()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sys := &BackgroundSystem{
		Config:  cfg,
		Events:  events.NewEventBus(),
		Metrics: metrics.NewCollector(),
	}
	sys.Metrics.SubscribeTo(sys.Events)

	var err error
	if sys.DeploymentStore, err = factory.CreateDeploymentStore(cfg.DeploymentStoreSettings()); err != nil {
		return nil, err
	}
	if sys.MetricStore, err = factory.CreateMetricStore(cfg.MetricStoreSettings()); err != nil {
		return nil, err
	}
	if sys.Archiver, err = factory.CreateArchiver(cfg.ArchiveSettings()); err != nil {
		sys.closeStores()
		return nil, err
	}

	prober := probe.New(
		probe.WithTimeout(cfg.Probe.Timeout),
		probe.WithHealthPath(cfg.Probe.HealthPath),
	)
	sys.Deployments, err = deployment.NewService(deployment.ServiceConfig{
		Store:       sys.DeploymentStore,
		MetricStore: sys.MetricStore,
		Archiver:    sys.Archiver,
		Prober:      prober,
		EventBus:    sys.Events,
	})
	if err != nil {
		sys.closeStores()
		return nil, fmt.Errorf("failed to create deployment service: %w", err)
	}

	sys.Aggregator = analytics.NewAggregator(sys.MetricStore)
	sys.Trends = analytics.NewTrendCalculator(sys.MetricStore)
	sys.Lockout = lockout.NewGuard(
		lockout.Config{MaxAttempts: cfg.Lockout.MaxAttempts, LockDuration: cfg.Lockout.LockDuration},
		lockout.WithLockHook(func(string, time.Time) { sys.Metrics.RecordLockout() }),
	)

	runner := monitor.NewProbeExecutor(sys.Deployments, sys.MetricStore, sys.Metrics)
	if sys.Dispatcher, err = factory.CreateProbeDispatcher(cfg.DispatcherSettings(), runner); err != nil {
		sys.closeStores()
		return nil, err
	}

	sys.Monitor = monitor.NewHealthMonitor(monitor.Config{
		Deployments:  sys.Deployments,
		Dispatcher:   sys.Dispatcher,
		Metrics:      sys.Metrics,
		ScanInterval: cfg.Probe.Interval,
	})
	sys.Sweeper = monitor.NewRetentionSweeper(monitor.RetentionConfig{
		Store:     sys.MetricStore,
		Metrics:   sys.Metrics,
		Pruners:   []monitor.Pruner{sys.Lockout},
		Retention: cfg.Retention.Period,
		Interval:  cfg.Retention.SweepInterval,
	})

	return sys, nil
}

// Start launches the dispatcher, the probe scan loop and the retention sweeper
func (s *BackgroundSystem) Start() error {
	if err := s.Dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start probe dispatcher: %w", err)
	}
	if err := s.Monitor.Start(); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}
	if err := s.Sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start retention sweeper: %w", err)
	}
	return nil
}

// Close stops background work and releases backend connections
func (s *BackgroundSystem) Close(ctx context.Context) error {
	var errs []error
	if err := s.Monitor.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop health monitor: %w", err))
	}
	if err := s.Sweeper.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop retention sweeper: %w", err))
	}
	if err := s.Dispatcher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop probe dispatcher: %w", err))
	}
	if err := s.closeStores(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Ping checks every backend the system depends on
func (s *BackgroundSystem) Ping(ctx context.Context) map[string]error {
	checks := map[string]error{
		"deployment_store": s.DeploymentStore.Ping(ctx),
		"metric_store":     s.MetricStore.Ping(ctx),
	}
	if s.Archiver != nil {
		checks["archive"] = s.Archiver.Ping(ctx)
	}
	if !s.Dispatcher.IsHealthy() {
		checks["dispatcher"] = fmt.Errorf("dispatcher is not running")
	} else {
		checks["dispatcher"] = nil
	}
	return checks
}

func (s *BackgroundSystem) closeStores() error {
	if closer, ok := s.MetricStore.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close metric store: %w", err)
		}
	}
	return nil
}
