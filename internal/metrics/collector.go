// Package metrics provides metrics collection and monitoring for probe,
// metric store and deployment lifecycle operations.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stackpulse/stackpulse/internal/events"
	"github.com/stackpulse/stackpulse/internal/interfaces"
)

const (
	namespace      = "stackpulse"
	maxProbeWindow = 1000
)

var probeBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Collector tracks system metrics. Counters are kept as atomics for
// GetSystemMetrics and mirrored into a private Prometheus registry.
type Collector struct {
	mu sync.RWMutex

	// Counters
	probesRun         int64
	probesHealthy     int64
	probesUnhealthy   int64
	samplesRecorded   int64
	samplesExpired    int64
	statusTransitions int64
	lockouts          int64

	// Timing
	probeDurations []time.Duration

	// Real-time metrics
	activeWorkers int32
	queueDepth    int32

	// System info
	startTime time.Time

	registry         *prometheus.Registry
	probeTotal       *prometheus.CounterVec
	probeLatency     *prometheus.HistogramVec
	samplesTotal     *prometheus.CounterVec
	expiredTotal     prometheus.Counter
	transitionsTotal *prometheus.CounterVec
	deploymentStatus *prometheus.GaugeVec
	lockoutsTotal    prometheus.Counter
	queueGauge       prometheus.Gauge
	workersGauge     prometheus.Gauge
	requestTotal     *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
}

// NewCollector creates a new metrics collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		startTime:      time.Now(),
		probeDurations: make([]time.Duration, 0, maxProbeWindow),
		registry:       prometheus.NewRegistry(),
	}

	c.probeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "checks_total",
		Help:      "Count of health probes by service and result",
	}, []string{"service", "status"})

	c.probeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "response_seconds",
		Help:      "Response time of healthy probes",
		Buckets:   probeBuckets,
	}, []string{"service"})

	c.samplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "metricstore",
		Name:      "samples_recorded_total",
		Help:      "Count of metric samples accepted by the store",
	}, []string{"type"})

	c.expiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "metricstore",
		Name:      "samples_expired_total",
		Help:      "Count of metric samples removed by retention sweeps",
	})

	c.transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "deployment",
		Name:      "status_transitions_total",
		Help:      "Count of overall status transitions",
	}, []string{"from", "to"})

	c.deploymentStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "deployment",
		Name:      "by_status",
		Help:      "Deployments currently in each overall status",
	}, []string{"status"})

	c.lockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "lockouts_total",
		Help:      "Count of principals locked after repeated failures",
	})

	c.queueGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Probe cycles waiting for a worker",
	})

	c.workersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "active_workers",
		Help:      "Workers available to run probe cycles",
	})

	c.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	c.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	c.registry.MustRegister(
		c.probeTotal, c.probeLatency, c.samplesTotal, c.expiredTotal,
		c.transitionsTotal, c.deploymentStatus, c.lockoutsTotal,
		c.queueGauge, c.workersGauge, c.requestTotal, c.requestLatency,
	)
	return c
}

// RecordProbe records the outcome of one service probe
func (c *Collector) RecordProbe(result interfaces.HealthCheckResult) {
	atomic.AddInt64(&c.probesRun, 1)
	c.probeTotal.WithLabelValues(string(result.Service), string(result.Status)).Inc()

	if result.Status != interfaces.HealthStatusHealthy {
		atomic.AddInt64(&c.probesUnhealthy, 1)
		return
	}
	atomic.AddInt64(&c.probesHealthy, 1)

	elapsed := time.Duration(result.ResponseTimeMillis) * time.Millisecond
	c.probeLatency.WithLabelValues(string(result.Service)).Observe(elapsed.Seconds())

	c.mu.Lock()
	c.probeDurations = append(c.probeDurations, elapsed)
	// Keep only last maxProbeWindow entries to avoid unbounded growth
	if len(c.probeDurations) > maxProbeWindow {
		c.probeDurations = c.probeDurations[len(c.probeDurations)-maxProbeWindow:]
	}
	c.mu.Unlock()
}

// RecordSample records one accepted metric sample
func (c *Collector) RecordSample(metricType interfaces.MetricType) {
	atomic.AddInt64(&c.samplesRecorded, 1)
	c.samplesTotal.WithLabelValues(string(metricType)).Inc()
}

// RecordSamplesExpired records samples removed by a retention sweep
func (c *Collector) RecordSamplesExpired(n int) {
	if n <= 0 {
		return
	}
	atomic.AddInt64(&c.samplesExpired, int64(n))
	c.expiredTotal.Add(float64(n))
}

// RecordStatusTransition records an overall status change and moves the
// deployment between the per-status gauges. An empty from means a new deployment.
func (c *Collector) RecordStatusTransition(from, to interfaces.DeploymentStatus) {
	atomic.AddInt64(&c.statusTransitions, 1)
	c.transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	if from != "" {
		c.deploymentStatus.WithLabelValues(string(from)).Dec()
	}
	if to != "" {
		c.deploymentStatus.WithLabelValues(string(to)).Inc()
	}
}

// RecordLockout records a principal being locked
func (c *Collector) RecordLockout() {
	atomic.AddInt64(&c.lockouts, 1)
	c.lockoutsTotal.Inc()
}

// RecordHTTPRequest records one handled API request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	c.requestTotal.With(labels).Inc()
	c.requestLatency.With(labels).Observe(duration.Seconds())
}

// UpdateQueueDepth updates the current queue depth
func (c *Collector) UpdateQueueDepth(depth int) {
	atomic.StoreInt32(&c.queueDepth, int32(depth)) // #nosec G115 - queue depth will never exceed int32 limits
	c.queueGauge.Set(float64(depth))
}

// UpdateActiveWorkers updates the number of active workers
func (c *Collector) UpdateActiveWorkers(count int) {
	atomic.StoreInt32(&c.activeWorkers, int32(count)) // #nosec G115 - worker count will never exceed int32 limits
	c.workersGauge.Set(float64(count))
}

// SubscribeTo feeds deployment events from the bus into the collector
func (c *Collector) SubscribeTo(bus *events.EventBus) {
	bus.Subscribe(events.EventStatusChanged, func(e events.DeploymentEvent) {
		c.RecordStatusTransition(e.PreviousStatus, e.Status)
	})
	bus.Subscribe(events.EventHealthChecked, func(e events.DeploymentEvent) {
		for _, r := range e.HealthChecks {
			c.RecordProbe(r)
		}
	})
	bus.Subscribe(events.EventDeploymentDeleted, func(e events.DeploymentEvent) {
		if e.PreviousStatus != "" {
			c.deploymentStatus.WithLabelValues(string(e.PreviousStatus)).Dec()
		}
	})
}

// GetSystemMetrics returns current system metrics
func (c *Collector) GetSystemMetrics() interfaces.SystemMetrics {
	c.mu.RLock()
	avgProbeTime := c.calculateAverageProbeTimeNoLock()
	c.mu.RUnlock()

	return interfaces.SystemMetrics{
		ProbesRun:         atomic.LoadInt64(&c.probesRun),
		ProbesHealthy:     atomic.LoadInt64(&c.probesHealthy),
		ProbesUnhealthy:   atomic.LoadInt64(&c.probesUnhealthy),
		AverageProbeTime:  avgProbeTime,
		SamplesRecorded:   atomic.LoadInt64(&c.samplesRecorded),
		SamplesExpired:    atomic.LoadInt64(&c.samplesExpired),
		StatusTransitions: atomic.LoadInt64(&c.statusTransitions),
		Lockouts:          atomic.LoadInt64(&c.lockouts),
		CurrentQueueDepth: int(atomic.LoadInt32(&c.queueDepth)),
		ActiveWorkers:     int(atomic.LoadInt32(&c.activeWorkers)),
		SystemUptime:      time.Since(c.startTime),
	}
}

// Registry exposes the collector's Prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// calculateAverageProbeTimeNoLock calculates average healthy probe time without acquiring lock
func (c *Collector) calculateAverageProbeTimeNoLock() time.Duration {
	if len(c.probeDurations) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range c.probeDurations {
		total += d
	}

	return total / time.Duration(len(c.probeDurations))
}

// Reset resets the atomic counters (useful for testing). Prometheus series are cumulative and stay.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	atomic.StoreInt64(&c.probesRun, 0)
	atomic.StoreInt64(&c.probesHealthy, 0)
	atomic.StoreInt64(&c.probesUnhealthy, 0)
	atomic.StoreInt64(&c.samplesRecorded, 0)
	atomic.StoreInt64(&c.samplesExpired, 0)
	atomic.StoreInt64(&c.statusTransitions, 0)
	atomic.StoreInt64(&c.lockouts, 0)
	atomic.StoreInt32(&c.queueDepth, 0)
	atomic.StoreInt32(&c.activeWorkers, 0)

	c.probeDurations = c.probeDurations[:0]
	c.startTime = time.Now()
}
