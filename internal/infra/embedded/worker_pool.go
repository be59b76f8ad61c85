package embedded

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/pkg/logging"
)

// DefaultTaskTimeout bounds one probe cycle
const DefaultTaskTimeout = 30 * time.Second

// WorkerPool implements interfaces.ProbeDispatcher using gammazero/workerpool
type WorkerPool struct {
	pool        *workerpool.WorkerPool
	queue       *Queue
	runner      interfaces.ProbeRunner
	taskTimeout time.Duration
	logger      *logging.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// WorkerPoolConfig configures the worker pool
type WorkerPoolConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Runner      interfaces.ProbeRunner
}

// NewWorkerPool creates a new embedded worker pool
func NewWorkerPool(config WorkerPoolConfig) (*WorkerPool, error) {
	if config.Runner == nil {
		return nil, fmt.Errorf("probe runner is required")
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultTaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		pool:        workerpool.New(config.Workers),
		queue:       NewQueue(config.QueueSize),
		runner:      config.Runner,
		taskTimeout: config.TaskTimeout,
		logger:      logging.NewLogger("embedded-worker"),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins processing probe cycles from the queue. Starting twice is a no-op.
func (p *WorkerPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return fmt.Errorf("worker pool has been stopped")
	}
	if p.started {
		return nil
	}
	p.started = true

	p.wg.Add(1)
	go p.processLoop()
	return nil
}

// Stop gracefully stops the worker pool, waiting for running cycles
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.pool.StopWait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop timeout: %w", ctx.Err())
	}
}

// Dispatch queues a probe cycle. A deployment whose cycle is queued or running is skipped.
func (p *WorkerPool) Dispatch(ctx context.Context, id interfaces.DeploymentID) error {
	queued, err := p.queue.Enqueue(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to dispatch probe cycle for %s: %w", id, err)
	}
	if !queued {
		p.logger.Debug("Probe cycle for %s already pending", id)
	}
	return nil
}

// processLoop continuously dequeues ids and hands them to the pool
func (p *WorkerPool) processLoop() {
	defer p.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker pool process loop panicked: %v", r)
		}
	}()

	for {
		id, err := p.queue.Dequeue(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			continue
		}

		p.pool.Submit(func() {
			p.processCycle(id)
		})
	}
}

// processCycle runs one probe cycle under the task timeout
func (p *WorkerPool) processCycle(id interfaces.DeploymentID) {
	defer p.queue.Done(id)

	// Add panic recovery to prevent worker pool crashes
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker pool panic while probing deployment %s: %v", id, r)
		}
	}()

	ctx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
	defer cancel()

	start := time.Now()
	if err := p.runner.RunProbeCycle(ctx, id); err != nil {
		p.logger.Warn("Probe cycle for %s failed after %v: %v", id, time.Since(start), err)
		return
	}
	p.logger.Debug("Probe cycle for %s finished in %v", id, time.Since(start))
}

// IsHealthy reports whether the pool is accepting work
func (p *WorkerPool) IsHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}

// GetWorkerCount returns the current number of active workers
func (p *WorkerPool) GetWorkerCount() int {
	return p.pool.Size()
}

// GetQueuedCount returns the number of probe cycles waiting to run
func (p *WorkerPool) GetQueuedCount() int {
	return p.queue.Size() + p.pool.WaitingQueueSize()
}

// GetQueueMetrics returns the dispatch queue counters
func (p *WorkerPool) GetQueueMetrics() QueueMetrics {
	return p.queue.GetMetrics()
}
