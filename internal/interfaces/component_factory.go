package interfaces

import (
	"time"
)

// ComponentFactory defines the interface for creating backend-specific components
type ComponentFactory interface {
	CreateDeploymentStore(config DeploymentStoreConfig) (DeploymentStore, error)
	CreateMetricStore(config MetricStoreConfig) (MetricStore, error)
	CreateArchiver(config ArchiveConfig) (Archiver, error)
	CreateProbeDispatcher(config DispatcherConfig, runner ProbeRunner) (ProbeDispatcher, error)
}

// DeploymentStoreConfig provides configuration for creating a DeploymentStore
type DeploymentStoreConfig struct {
	Type     string // "memory", "dynamodb"
	Table    string
	Region   string
	Endpoint string
}

// MetricStoreConfig provides configuration for creating a MetricStore
type MetricStoreConfig struct {
	Type      string // "memory", "redis"
	RedisURL  string
	KeyPrefix string
	Retention time.Duration
}

// ArchiveConfig provides configuration for creating an Archiver
type ArchiveConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// DispatcherConfig provides configuration for creating a ProbeDispatcher
type DispatcherConfig struct {
	Type        string // "embedded", "distributed"
	Workers     int
	QueueSize   int
	RedisURL    string
	Queue       string
	TaskTimeout time.Duration
}
