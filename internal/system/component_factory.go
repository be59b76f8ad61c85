package system

import (
	"context"
	"fmt"

	"github.com/stackpulse/stackpulse/internal/infra/distributed"
	"github.com/stackpulse/stackpulse/internal/infra/embedded"
	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/metricstore"
	"github.com/stackpulse/stackpulse/internal/state"
	"github.com/stackpulse/stackpulse/pkg/logging"
)

var logger = logging.NewLogger("component-factory")

// DefaultComponentFactory implements interfaces.ComponentFactory with the bundled backends
type DefaultComponentFactory struct{}

// Compile-time interface check
var _ interfaces.ComponentFactory = (*DefaultComponentFactory)(nil)

// NewDefaultComponentFactory creates a new DefaultComponentFactory
func NewDefaultComponentFactory() *DefaultComponentFactory {
	return &DefaultComponentFactory{}
}

// CreateDeploymentStore creates a DeploymentStore based on the configuration
func (f *DefaultComponentFactory) CreateDeploymentStore(config interfaces.DeploymentStoreConfig) (interfaces.DeploymentStore, error) {
	switch config.Type {
	case "memory", "":
		return state.NewMemoryStore(), nil
	case "dynamodb":
		ctx, cancel := context.WithTimeout(context.Background(), DefaultSystemConfig.ConnectTimeout)
		defer cancel()

		store, err := state.NewDynamoDBStore(ctx, state.DynamoDBStoreConfig{
			Table:    config.Table,
			Region:   config.Region,
			Endpoint: config.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create DynamoDB deployment store: %w", err)
		}
		logger.Info("Created DynamoDB deployment store for table: %s", config.Table)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported deployment store type: %s (supported: memory, dynamodb)", config.Type)
	}
}

// CreateMetricStore creates a MetricStore based on the configuration
func (f *DefaultComponentFactory) CreateMetricStore(config interfaces.MetricStoreConfig) (interfaces.MetricStore, error) {
	switch config.Type {
	case "memory", "":
		return metricstore.NewMemoryStore(), nil
	case "redis":
		if config.RedisURL == "" {
			return nil, fmt.Errorf("redis URL is required for the redis metric store")
		}
		ctx, cancel := context.WithTimeout(context.Background(), DefaultSystemConfig.ConnectTimeout)
		defer cancel()

		store, err := metricstore.NewRedisStoreFromURL(ctx, metricstore.RedisStoreConfig{
			URL:       config.RedisURL,
			KeyPrefix: config.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis metric store: %w", err)
		}
		logger.Info("Created redis metric store with prefix: %s", config.KeyPrefix)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported metric store type: %s (supported: memory, redis)", config.Type)
	}
}

// CreateArchiver creates the S3 archive. An empty bucket disables archiving
// and returns a nil Archiver.
func (f *DefaultComponentFactory) CreateArchiver(config interfaces.ArchiveConfig) (interfaces.Archiver, error) {
	if config.Bucket == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultSystemConfig.ConnectTimeout)
	defer cancel()

	archive, err := state.NewS3Archive(ctx, state.S3ArchiveConfig{
		Bucket:   config.Bucket,
		Prefix:   config.Prefix,
		Region:   config.Region,
		Endpoint: config.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 archive: %w", err)
	}
	logger.Info("Created S3 archive for bucket: %s", config.Bucket)
	return archive, nil
}

// CreateProbeDispatcher creates the embedded or distributed dispatcher
func (f *DefaultComponentFactory) CreateProbeDispatcher(
	config interfaces.DispatcherConfig,
	runner interfaces.ProbeRunner,
) (interfaces.ProbeDispatcher, error) {
	if runner == nil {
		return nil, fmt.Errorf("probe runner is required")
	}

	switch config.Type {
	case "embedded", "":
		pool, err := embedded.NewWorkerPool(embedded.WorkerPoolConfig{
			Workers:     config.Workers,
			QueueSize:   config.QueueSize,
			TaskTimeout: config.TaskTimeout,
			Runner:      runner,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedded worker pool: %w", err)
		}
		return pool, nil
	case "distributed":
		if config.RedisURL == "" {
			return nil, fmt.Errorf("redis URL is required for distributed mode")
		}
		dispatcher, err := distributed.NewDispatcher(distributed.Config{
			RedisURL:    config.RedisURL,
			Queue:       config.Queue,
			Concurrency: config.Workers,
			TaskTimeout: config.TaskTimeout,
			Runner:      runner,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create distributed dispatcher: %w", err)
		}
		return dispatcher, nil
	default:
		return nil, fmt.Errorf("unsupported dispatcher type: %s (supported: embedded, distributed)", config.Type)
	}
}
