package distributed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type breakerClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *breakerClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *breakerClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errRedisDown = errors.New("dial tcp 127.0.0.1:6379: connection refused")

func failing() error { return errRedisDown }
func succeeding() error { return nil }

func newTestBreaker(clock *breakerClock, transitions *[]string) *CircuitBreaker {
	return NewCircuitBreaker("test", CircuitBreakerConfig{
		MaxFailures: 3,
		CoolDown:    10 * time.Second,
		Now:         clock.Now,
		OnStateChange: func(_ string, from, to CircuitState) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		},
	})
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	clock := &breakerClock{now: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(ctx, failing), errRedisDown)
	}
	assert.Equal(t, CircuitClosed, cb.State())

	require.ErrorIs(t, cb.Execute(ctx, failing), errRedisDown)
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	t.Parallel()
	clock := &breakerClock{now: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	require.NoError(t, cb.Execute(ctx, succeeding))
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)

	assert.Equal(t, CircuitClosed, cb.State())
	counts := cb.Counts()
	assert.Equal(t, int64(5), counts.Requests)
	assert.Equal(t, int64(4), counts.Failures)
	assert.Equal(t, int64(2), counts.ConsecutiveFailures)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	t.Run("trial success closes", func(t *testing.T) {
		t.Parallel()
		clock := &breakerClock{now: time.Unix(0, 0)}
		var transitions []string
		cb := newTestBreaker(clock, &transitions)
		for i := 0; i < 3; i++ {
			_ = cb.Execute(context.Background(), failing)
		}

		clock.Advance(5 * time.Second)
		require.ErrorIs(t, cb.Execute(context.Background(), succeeding), ErrCircuitOpen)

		clock.Advance(5 * time.Second)
		require.NoError(t, cb.Execute(context.Background(), succeeding))
		assert.Equal(t, CircuitClosed, cb.State())
		assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
	})

	t.Run("trial failure reopens", func(t *testing.T) {
		t.Parallel()
		clock := &breakerClock{now: time.Unix(0, 0)}
		var transitions []string
		cb := newTestBreaker(clock, &transitions)
		for i := 0; i < 3; i++ {
			_ = cb.Execute(context.Background(), failing)
		}

		clock.Advance(11 * time.Second)
		require.ErrorIs(t, cb.Execute(context.Background(), failing), errRedisDown)
		assert.Equal(t, CircuitOpen, cb.State())
		require.ErrorIs(t, cb.Execute(context.Background(), succeeding), ErrCircuitOpen)
	})

	t.Run("single trial while half open", func(t *testing.T) {
		t.Parallel()
		clock := &breakerClock{now: time.Unix(0, 0)}
		var transitions []string
		cb := newTestBreaker(clock, &transitions)
		for i := 0; i < 3; i++ {
			_ = cb.Execute(context.Background(), failing)
		}
		clock.Advance(11 * time.Second)

		inTrial := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- cb.Execute(context.Background(), func() error {
				close(inTrial)
				<-release
				return nil
			})
		}()

		<-inTrial
		require.ErrorIs(t, cb.Execute(context.Background(), succeeding), ErrCircuitOpen)
		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, CircuitClosed, cb.State())
	})
}

func TestCircuitBreaker_ContextErrors(t *testing.T) {
	t.Parallel()
	clock := &breakerClock{now: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx2, func() error {
			cancel2()
			return ctx2.Err()
		})
	}
	assert.Equal(t, CircuitClosed, cb.State(), "canceled calls are not failures")
	assert.Empty(t, transitions)
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker("defaults", CircuitBreakerConfig{})
	assert.Equal(t, int64(5), cb.config.MaxFailures)
	assert.Equal(t, 30*time.Second, cb.config.CoolDown)
	assert.Equal(t, "unknown", CircuitState(9).String())
}
