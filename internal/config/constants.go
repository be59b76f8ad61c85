package config

import "time"

const (
	// APIBasePath is the base path for the API.
	APIBasePath = "/api/v1"
	// APIEndpointDeployments is the deployments collection
	APIEndpointDeployments = "/api/v1/deployments"
	// APIEndpointHealth is the system health endpoint
	APIEndpointHealth = "/api/v1/system/health"
	// APIEndpointReady reports whether every backend answers
	APIEndpointReady = "/api/v1/system/health/ready"
	// APIEndpointLive reports that the process is serving
	APIEndpointLive = "/api/v1/system/health/live"
	// APIEndpointMetrics is the Prometheus exposition endpoint
	APIEndpointMetrics = "/metrics"
)

// Backend type names
const (
	StoreTypeMemory      = "memory"
	StoreTypeDynamoDB    = "dynamodb"
	StoreTypeRedis       = "redis"
	SchedulerEmbedded    = "embedded"
	SchedulerDistributed = "distributed"
)

// Defaults
const (
	DefaultPort            = 8080
	DefaultProbeTimeout    = 5 * time.Second
	DefaultProbeInterval   = 30 * time.Second
	DefaultHealthPath      = "/health"
	DefaultRetention       = 30 * 24 * time.Hour
	DefaultSweepInterval   = time.Hour
	DefaultMaxAttempts     = 5
	DefaultLockDuration    = 2 * time.Hour
	DefaultWorkers         = 4
	DefaultQueueSize       = 1000
	DefaultDynamoDBTable   = "stackpulse-deployments"
	DefaultMetricKeyPrefix = "stackpulse:metrics"
	DefaultArchivePrefix   = "archive/"
	DefaultQueueName       = "probes"
	DefaultLocalStackURL   = "http://localstack:4566"
)
