package interfaces

import "time"

// SystemMetrics provides metrics about the overall system
type SystemMetrics struct {
	ProbesRun         int64
	ProbesHealthy     int64
	ProbesUnhealthy   int64
	AverageProbeTime  time.Duration
	SamplesRecorded   int64
	SamplesExpired    int64
	StatusTransitions int64
	Lockouts          int64
	CurrentQueueDepth int
	ActiveWorkers     int
	SystemUptime      time.Duration
}

// HealthStatus is the health of a probed service or of a system component
type HealthStatus string

const (
	// HealthStatusHealthy indicates the target responded successfully
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusDegraded indicates system has issues but is functional
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusUnhealthy indicates the target did not respond successfully
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)
