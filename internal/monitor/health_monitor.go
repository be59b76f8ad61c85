// Package monitor runs the background loops that keep deployments probed
// and metric storage within its retention window.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/logging"
	"github.com/stackpulse/stackpulse/internal/metrics"
)

// DeploymentLister lists deployments for the monitor to probe
type DeploymentLister interface {
	List(ctx context.Context, filter interfaces.DeploymentFilter) ([]*interfaces.Deployment, error)
}

// HealthMonitor periodically dispatches a probe cycle for every active deployment
type HealthMonitor struct {
	deployments DeploymentLister
	dispatcher  interfaces.ProbeDispatcher
	metrics     *metrics.Collector
	logger      *logging.Logger

	// Configuration
	scanInterval time.Duration
	maxBackoff   time.Duration // Maximum scan interval while no deployments are active

	// State
	mu                sync.RWMutex
	running           bool
	ctx               context.Context
	cancel            context.CancelFunc
	wg                sync.WaitGroup
	lastScan          time.Time
	dispatched        int
	currentInterval   time.Duration
	backoffMultiplier float64
}

// Config holds configuration for the health monitor
type Config struct {
	Deployments  DeploymentLister
	Dispatcher   interfaces.ProbeDispatcher
	Metrics      *metrics.Collector
	ScanInterval time.Duration
	MaxBackoff   time.Duration // 0 = 10x base interval
}

// Stats holds monitoring statistics
type Stats struct {
	Running         bool          `json:"running"`
	LastScan        time.Time     `json:"last_scan"`
	Dispatched      int           `json:"dispatched"`
	CurrentInterval time.Duration `json:"current_interval"`
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(cfg Config) *HealthMonitor {
	if cfg.ScanInterval == 0 {
		cfg.ScanInterval = 1 * time.Minute
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = cfg.ScanInterval * 10
	}

	return &HealthMonitor{
		deployments:       cfg.Deployments,
		dispatcher:        cfg.Dispatcher,
		metrics:           cfg.Metrics,
		logger:            logging.NewLogger("HealthMonitor"),
		scanInterval:      cfg.ScanInterval,
		maxBackoff:        cfg.MaxBackoff,
		currentInterval:   cfg.ScanInterval,
		backoffMultiplier: 1.0,
	}
}

// Start begins the scan loop
func (m *HealthMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("monitor already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.running = true

	m.wg.Add(1)
	go m.monitorLoop()

	m.logger.Infof("Started with scan interval %v", m.scanInterval)
	return nil
}

// Stop stops the monitor
func (m *HealthMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("monitor shutdown timeout: %w", ctx.Err())
	}
}

// GetStats returns current monitoring statistics
func (m *HealthMonitor) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Running:         m.running,
		LastScan:        m.lastScan,
		Dispatched:      m.dispatched,
		CurrentInterval: m.currentInterval,
	}
}

func (m *HealthMonitor) monitorLoop() {
	defer m.wg.Done()

	m.Scan(m.ctx)

	for {
		m.mu.RLock()
		interval := m.currentInterval
		m.mu.RUnlock()

		// Timer instead of ticker so the interval can change between scans
		timer := time.NewTimer(interval)

		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			m.Scan(m.ctx)
		}
	}
}

// Scan dispatches one probe cycle per active deployment and returns how many were dispatched
func (m *HealthMonitor) Scan(ctx context.Context) int {
	startTime := time.Now()

	deployments, err := m.deployments.List(ctx, interfaces.DeploymentFilter{ActiveOnly: true})
	if err != nil {
		m.logger.Errorf("Error listing active deployments: %v", err)
		return 0
	}

	dispatched := 0
	for _, d := range deployments {
		if err := m.dispatcher.Dispatch(ctx, d.ID); err != nil {
			m.logger.Warnf("Failed to dispatch probe cycle for %s: %v", d.ID, err)
			continue
		}
		dispatched++
	}

	if m.metrics != nil {
		m.metrics.UpdateQueueDepth(m.dispatcher.GetQueuedCount())
		m.metrics.UpdateActiveWorkers(m.dispatcher.GetWorkerCount())
	}

	m.mu.Lock()
	m.lastScan = time.Now()
	m.dispatched = dispatched
	m.adjustIntervalNoLock(len(deployments))
	m.mu.Unlock()

	m.logger.Debugf("Scan complete in %v, dispatched %d of %d active deployments",
		time.Since(startTime), dispatched, len(deployments))
	return dispatched
}

// adjustIntervalNoLock backs off while nothing is active and returns to the
// base interval as soon as a deployment appears.
func (m *HealthMonitor) adjustIntervalNoLock(active int) {
	if active > 0 {
		if m.backoffMultiplier > 1.0 {
			m.logger.Infof("Active deployments found, resetting scan interval to base %v", m.scanInterval)
		}
		m.backoffMultiplier = 1.0
		m.currentInterval = m.scanInterval
		return
	}

	oldInterval := m.currentInterval
	if m.backoffMultiplier < 2.0 {
		m.backoffMultiplier = 2.0
	} else {
		m.backoffMultiplier *= 1.5
	}
	newInterval := time.Duration(float64(m.scanInterval) * m.backoffMultiplier)
	if newInterval > m.maxBackoff {
		newInterval = m.maxBackoff
	}
	m.currentInterval = newInterval

	if oldInterval != m.currentInterval {
		m.logger.Debugf("No active deployments, increasing scan interval to %v", m.currentInterval)
	}
}
