package distributed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/pkg/logging"
)

const (
	// DefaultQueue is the asynq queue probe cycles are enqueued on
	DefaultQueue = "probes"
	// DefaultConcurrency is the number of asynq workers per process
	DefaultConcurrency = 10
	// DefaultTaskTimeout bounds one probe cycle
	DefaultTaskTimeout = 30 * time.Second
	// transientRetries is how often a timed out cycle is retried
	transientRetries = 2
)

// Config configures the distributed dispatcher
type Config struct {
	RedisURL    string
	Queue       string
	Concurrency int
	TaskTimeout time.Duration
	Runner      interfaces.ProbeRunner
	Breaker     CircuitBreakerConfig
}

// Dispatcher implements interfaces.ProbeDispatcher on top of an asynq client and server
type Dispatcher struct {
	client      *asynq.Client
	server      *asynq.Server
	inspector   *asynq.Inspector
	mux         *asynq.ServeMux
	breaker     *CircuitBreaker
	runner      interfaces.ProbeRunner
	queue       string
	concurrency int
	taskTimeout time.Duration
	logger      *logging.Logger
	mu          sync.Mutex
	started     bool
	stopped     bool
}

// NewDispatcher creates a new distributed dispatcher. No connection is made until Start or Dispatch.
func NewDispatcher(config Config) (*Dispatcher, error) {
	if config.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if config.Runner == nil {
		return nil, fmt.Errorf("probe runner is required")
	}

	redisOpt, err := asynq.ParseRedisURI(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	if config.Queue == "" {
		config.Queue = DefaultQueue
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultTaskTimeout
	}

	logger := logging.NewLogger("distributed-dispatcher")
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: config.Concurrency,
			Queues:      map[string]int{config.Queue: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				logger.Warn("Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	d := &Dispatcher{
		client:      asynq.NewClient(redisOpt),
		server:      server,
		inspector:   asynq.NewInspector(redisOpt),
		mux:         asynq.NewServeMux(),
		breaker:     NewCircuitBreaker("probe-enqueue", config.Breaker),
		runner:      config.Runner,
		queue:       config.Queue,
		concurrency: config.Concurrency,
		taskTimeout: config.TaskTimeout,
		logger:      logger,
	}
	d.mux.HandleFunc(TaskTypeProbeCycle, d.handleProbeTask)

	return d, nil
}

// Start launches the asynq server. Starting twice is a no-op.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return fmt.Errorf("dispatcher has been stopped")
	}
	if d.started {
		return nil
	}

	if err := d.server.Start(d.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	d.started = true
	return nil
}

// Stop shuts the server down and releases the Redis connections
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	started := d.started
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if started {
			// Shutdown blocks until active handlers return or the server timeout hits
			d.server.Shutdown()
		}
		close(done)
	}()

	var stopErr error
	select {
	case <-done:
	case <-ctx.Done():
		stopErr = fmt.Errorf("stop timeout: %w", ctx.Err())
	}

	if err := d.client.Close(); err != nil {
		d.logger.Warn("Failed to close asynq client: %v", err)
	}
	if err := d.inspector.Close(); err != nil {
		d.logger.Warn("Failed to close asynq inspector: %v", err)
	}
	return stopErr
}

// Dispatch enqueues a probe cycle. The task is unique per deployment for the
// task timeout, so a cycle that is still pending is not enqueued twice.
func (d *Dispatcher) Dispatch(ctx context.Context, id interfaces.DeploymentID) error {
	task, err := NewProbeTask(id)
	if err != nil {
		return err
	}

	err = d.breaker.Execute(ctx, func() error {
		_, enqueueErr := d.client.EnqueueContext(ctx, task,
			asynq.Queue(d.queue),
			asynq.Unique(d.taskTimeout),
			asynq.Timeout(d.taskTimeout),
			asynq.MaxRetry(transientRetries),
		)
		if errors.Is(enqueueErr, asynq.ErrDuplicateTask) || errors.Is(enqueueErr, asynq.ErrTaskIDConflict) {
			d.logger.Debug("Probe cycle for %s already pending", id)
			return nil
		}
		return enqueueErr //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		return fmt.Errorf("failed to dispatch probe cycle for %s: %w", id, err)
	}
	return nil
}

// handleProbeTask runs one probe cycle. Only transient failures are retried.
func (d *Dispatcher) handleProbeTask(ctx context.Context, task *asynq.Task) error {
	id, err := ParseProbeTask(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	start := time.Now()
	if err := d.runner.RunProbeCycle(ctx, id); err != nil {
		d.logger.Warn("Probe cycle for %s failed after %v: %v", id, time.Since(start), err)
		if IsTransient(err) {
			return fmt.Errorf("probe cycle for %s: %w", id, err)
		}
		return fmt.Errorf("probe cycle for %s: %w: %w", id, err, asynq.SkipRetry)
	}
	d.logger.Debug("Probe cycle for %s finished in %v", id, time.Since(start))
	return nil
}

// IsHealthy reports whether the dispatcher is running and Redis is reachable
func (d *Dispatcher) IsHealthy() bool {
	d.mu.Lock()
	running := d.started && !d.stopped
	d.mu.Unlock()
	return running && d.breaker.State() != CircuitOpen
}

// GetWorkerCount returns the configured asynq concurrency
func (d *Dispatcher) GetWorkerCount() int {
	return d.concurrency
}

// GetQueuedCount returns pending, scheduled and retrying probe tasks
func (d *Dispatcher) GetQueuedCount() int {
	info, err := d.inspector.GetQueueInfo(d.queue)
	if err != nil {
		if !errors.Is(err, asynq.ErrQueueNotFound) {
			d.logger.Debug("Failed to read queue info for %s: %v", d.queue, err)
		}
		return 0
	}
	return info.Pending + info.Scheduled + info.Retry
}

// BreakerState exposes the enqueue circuit state
func (d *Dispatcher) BreakerState() CircuitState {
	return d.breaker.State()
}
