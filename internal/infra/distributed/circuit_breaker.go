// Package distributed provides the Redis backed probe dispatcher built on asynq.
package distributed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stackpulse/stackpulse/pkg/logging"
)

// ErrCircuitOpen is returned while the breaker rejects calls to Redis
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the current state of the circuit breaker
type CircuitState int32

const (
	// CircuitClosed lets every call through
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the cool down expires
	CircuitOpen
	// CircuitHalfOpen lets a single trial call through
	CircuitHalfOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures circuit breaker behavior
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int64
	// CoolDown is how long the circuit stays open before a trial call
	CoolDown time.Duration
	// OnStateChange is called whenever the circuit breaker changes state
	OnStateChange func(name string, from, to CircuitState)
	// Now overrides the clock in tests
	Now func() time.Time
}

// DefaultCircuitBreakerConfig returns the breaker settings used for enqueueing
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 5,
		CoolDown:    30 * time.Second,
	}
}

// Counts represents circuit breaker statistics since the last state change
type Counts struct {
	Requests            int64
	Successes           int64
	Failures            int64
	ConsecutiveFailures int64
}

// CircuitBreaker stops hammering Redis once enqueues keep failing
type CircuitBreaker struct {
	name     string
	config   CircuitBreakerConfig
	logger   *logging.Logger
	mu       sync.Mutex
	state    CircuitState
	counts   Counts
	openedAt time.Time
	trial    bool
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.CoolDown <= 0 {
		config.CoolDown = defaults.CoolDown
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logging.NewLogger("circuit-breaker"),
		state:  CircuitClosed,
	}
}

// Execute runs fn unless the circuit is open. Context errors do not count as failures.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context.Err() doesn't need wrapping
	}
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn()
	if err != nil && ctx.Err() != nil {
		cb.release()
		return err
	}
	cb.afterCall(err == nil)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.config.Now().Sub(cb.openedAt) < cb.config.CoolDown {
			return ErrCircuitOpen
		}
		cb.setState(CircuitHalfOpen)
	}
	if cb.state == CircuitHalfOpen {
		if cb.trial {
			return ErrCircuitOpen
		}
		cb.trial = true
	}

	cb.counts.Requests++
	return nil
}

// release frees the half-open trial slot without judging the outcome
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trial = false
}

func (cb *CircuitBreaker) afterCall(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trial = false
	if success {
		cb.counts.Successes++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == CircuitHalfOpen {
			cb.setState(CircuitClosed)
		}
		return
	}

	cb.counts.Failures++
	cb.counts.ConsecutiveFailures++
	switch cb.state {
	case CircuitHalfOpen:
		cb.setState(CircuitOpen)
	case CircuitClosed:
		if cb.counts.ConsecutiveFailures >= cb.config.MaxFailures {
			cb.setState(CircuitOpen)
		}
	case CircuitOpen:
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(state CircuitState) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	cb.counts = Counts{}
	if state == CircuitOpen {
		cb.openedAt = cb.config.Now()
	}

	cb.logger.Info("Circuit breaker '%s' changed state from %s to %s", cb.name, prev, state)
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, prev, state)
	}
}

// State returns the current circuit breaker state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns the current circuit breaker counts
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}
