// Package embedded provides in-process infrastructure for scheduling probe cycles.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// Queue errors
var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

// Queue is a bounded FIFO of deployment ids backed by a channel. An id that
// is queued or still being worked on is not queued a second time.
type Queue struct {
	mu        sync.Mutex
	items     chan interfaces.DeploymentID
	pending   map[interfaces.DeploymentID]struct{}
	closed    bool
	closeOnce sync.Once

	// Metrics
	totalEnqueued int64
	totalDequeued int64
	totalSkipped  int64
}

// QueueMetrics is a snapshot of queue counters
type QueueMetrics struct {
	TotalEnqueued int64
	TotalDequeued int64
	TotalSkipped  int64
	CurrentDepth  int
	InFlight      int
}

// NewQueue creates a new queue
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 100 // Default capacity
	}

	return &Queue{
		items:   make(chan interfaces.DeploymentID, capacity),
		pending: make(map[interfaces.DeploymentID]struct{}),
	}
}

// Enqueue adds an id to the queue. It reports false when the id was already pending.
func (q *Queue) Enqueue(ctx context.Context, id interfaces.DeploymentID) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("deployment ID is empty")
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("enqueue canceled: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}
	if _, ok := q.pending[id]; ok {
		q.totalSkipped++
		return false, nil
	}

	select {
	case q.items <- id:
		q.pending[id] = struct{}{}
		q.totalEnqueued++
		return true, nil
	default:
		return false, ErrQueueFull
	}
}

// Dequeue blocks until an id is available. The id stays pending until Done is called.
func (q *Queue) Dequeue(ctx context.Context) (interfaces.DeploymentID, error) {
	select {
	case id, ok := <-q.items:
		if !ok {
			return "", ErrQueueClosed
		}
		q.mu.Lock()
		q.totalDequeued++
		q.mu.Unlock()
		return id, nil
	case <-ctx.Done():
		return "", fmt.Errorf("context canceled: %w", ctx.Err())
	}
}

// Done releases an id so it may be queued again
func (q *Queue) Done(id interfaces.DeploymentID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, id)
}

// Close closes the queue. Ids still buffered can be drained by Dequeue.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.closed = true
		close(q.items)
	})
}

// Size returns the number of ids waiting in the queue
func (q *Queue) Size() int {
	return len(q.items)
}

// Capacity returns the queue capacity
func (q *Queue) Capacity() int {
	return cap(q.items)
}

// GetMetrics returns queue metrics
func (q *Queue) GetMetrics() QueueMetrics {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueMetrics{
		TotalEnqueued: q.totalEnqueued,
		TotalDequeued: q.totalDequeued,
		TotalSkipped:  q.totalSkipped,
		CurrentDepth:  len(q.items),
		InFlight:      len(q.pending) - len(q.items),
	}
}
