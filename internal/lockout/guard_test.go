package lockout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGuard() (*Guard, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewGuard(DefaultConfig(), WithClock(clock.Now)), clock
}

func TestGuard_LocksAfterFiveFailures(t *testing.T) {
	t.Parallel()
	g, clock := newTestGuard()

	for i := 1; i <= 4; i++ {
		st, err := g.RecordFailure("alice")
		require.NoError(t, err)
		assert.Equal(t, i, st.AttemptCount)
		assert.False(t, st.Locked)
		assert.False(t, g.IsLocked("alice"))
	}

	st, err := g.RecordFailure("alice")
	require.NoError(t, err)
	assert.Equal(t, 5, st.AttemptCount)
	assert.True(t, st.Locked)
	require.NotNil(t, st.LockedUntil)
	assert.Equal(t, clock.Now().Add(2*time.Hour), *st.LockedUntil)
	assert.True(t, g.IsLocked("alice"))
}

func TestGuard_FailureWhileLockedDoesNotIncrement(t *testing.T) {
	t.Parallel()
	g, _ := newTestGuard()
	for i := 0; i < 5; i++ {
		_, err := g.RecordFailure("bob")
		require.NoError(t, err)
	}

	st, err := g.RecordFailure("bob")
	assert.ErrorIs(t, err, ErrLocked)
	assert.Equal(t, 5, st.AttemptCount)
	assert.Equal(t, 5, g.State("bob").AttemptCount)
}

func TestGuard_ExpiredLockResetsToOne(t *testing.T) {
	t.Parallel()
	g, clock := newTestGuard()
	for i := 0; i < 5; i++ {
		_, err := g.RecordFailure("carol")
		require.NoError(t, err)
	}

	clock.Advance(2 * time.Hour)
	assert.False(t, g.IsLocked("carol"), "lock ends when until is no longer in the future")

	st, err := g.RecordFailure("carol")
	require.NoError(t, err)
	assert.Equal(t, 1, st.AttemptCount)
	assert.False(t, st.Locked)
	assert.Nil(t, st.LockedUntil)
}

func TestGuard_SuccessClearsEverything(t *testing.T) {
	t.Parallel()
	g, _ := newTestGuard()

	_, _ = g.RecordFailure("dave")
	_, _ = g.RecordFailure("dave")
	g.RecordSuccess("dave")
	assert.Equal(t, State{Principal: "dave"}, g.State("dave"))

	for i := 0; i < 5; i++ {
		_, _ = g.RecordFailure("dave")
	}
	require.True(t, g.IsLocked("dave"))
	g.RecordSuccess("dave")
	assert.False(t, g.IsLocked("dave"))
	assert.Zero(t, g.State("dave").AttemptCount)
}

func TestGuard_PrincipalsAreIndependent(t *testing.T) {
	t.Parallel()
	g, _ := newTestGuard()
	for i := 0; i < 5; i++ {
		_, _ = g.RecordFailure("erin")
	}
	assert.True(t, g.IsLocked("erin"))
	assert.False(t, g.IsLocked("frank"))

	st, err := g.RecordFailure("frank")
	require.NoError(t, err)
	assert.Equal(t, 1, st.AttemptCount)
}

func TestGuard_LockHookAndCustomConfig(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	var locked []string
	g := NewGuard(Config{MaxAttempts: 2, LockDuration: time.Minute},
		WithClock(clock.Now),
		WithLockHook(func(principal string, _ time.Time) { locked = append(locked, principal) }))

	_, _ = g.RecordFailure("gina")
	st, err := g.RecordFailure("gina")
	require.NoError(t, err)
	assert.True(t, st.Locked)
	assert.Equal(t, []string{"gina"}, locked)

	clock.Advance(time.Minute + time.Second)
	assert.False(t, g.IsLocked("gina"))
}

func TestGuard_DefaultsForInvalidConfig(t *testing.T) {
	t.Parallel()
	g := NewGuard(Config{})
	assert.Equal(t, DefaultMaxAttempts, g.config.MaxAttempts)
	assert.Equal(t, DefaultLockDuration, g.config.LockDuration)
}

func TestGuard_Prune(t *testing.T) {
	t.Parallel()
	g, clock := newTestGuard()
	for i := 0; i < 5; i++ {
		_, _ = g.RecordFailure("henry")
	}
	_, _ = g.RecordFailure("iris")

	assert.Equal(t, 0, g.Prune(clock.Now()))
	clock.Advance(3 * time.Hour)
	assert.Equal(t, 1, g.Prune(clock.Now()))
	assert.Equal(t, 1, g.State("iris").AttemptCount)
	assert.Zero(t, g.State("henry").AttemptCount)
}

func TestGuard_PruneIdlePrincipals(t *testing.T) {
	t.Parallel()
	g, clock := newTestGuard()
	for i := 0; i < DefaultMaxAttempts-1; i++ {
		_, _ = g.RecordFailure("jack")
	}
	clock.Advance(12 * time.Hour)
	_, _ = g.RecordFailure("kate")
	require.Equal(t, 2, g.Len())

	clock.Advance(DefaultIdleTTL - time.Hour)
	assert.Equal(t, 1, g.Prune(clock.Now()))
	assert.Zero(t, g.State("jack").AttemptCount)
	assert.Equal(t, 1, g.State("kate").AttemptCount)

	clock.Advance(12 * time.Hour)
	assert.Equal(t, 1, g.Prune(clock.Now()))
	assert.Zero(t, g.Len())
}

func TestGuard_ConcurrentFailures(t *testing.T) {
	t.Parallel()
	g, _ := newTestGuard()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.RecordFailure("jack")
		}()
	}
	wg.Wait()

	st := g.State("jack")
	assert.Equal(t, DefaultMaxAttempts, st.AttemptCount)
	assert.True(t, st.Locked)
}
