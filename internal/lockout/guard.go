// Package lockout tracks failed authentication attempts per principal and
// enforces a timed lock once a threshold is reached.
package lockout

import (
	"errors"
	"sync"
	"time"

	"github.com/stackpulse/stackpulse/pkg/logging"
)

// Defaults for the lock policy
const (
	DefaultMaxAttempts  = 5
	DefaultLockDuration = 2 * time.Hour
	DefaultIdleTTL      = 24 * time.Hour
)

// ErrLocked is returned for attempts made while a principal is locked
var ErrLocked = errors.New("account is temporarily locked")

// Config holds the lock policy
type Config struct {
	MaxAttempts  int
	LockDuration time.Duration
	// IdleTTL is how long an unlocked principal's failures are kept after the last one
	IdleTTL time.Duration
}

// DefaultConfig returns the standard policy: 5 attempts, 2 hour lock
func DefaultConfig() Config {
	return Config{MaxAttempts: DefaultMaxAttempts, LockDuration: DefaultLockDuration, IdleTTL: DefaultIdleTTL}
}

// State is a snapshot of one principal's attempt tracking
type State struct {
	Principal    string     `json:"principal"`
	AttemptCount int        `json:"attempt_count"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	Locked       bool       `json:"locked"`
}

type attemptState struct {
	attempts    int
	lockedUntil time.Time
	lastFailure time.Time
}

// Guard is safe for concurrent use
type Guard struct {
	mu     sync.Mutex
	config Config
	states map[string]*attemptState
	now    func() time.Time
	onLock func(principal string, until time.Time)
}

// Option configures a Guard
type Option func(*Guard)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithLockHook registers a callback run when a principal becomes locked
func WithLockHook(fn func(principal string, until time.Time)) Option {
	return func(g *Guard) { g.onLock = fn }
}

// NewGuard creates a guard. Non-positive config values fall back to the defaults.
func NewGuard(config Config, opts ...Option) *Guard {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.LockDuration <= 0 {
		config.LockDuration = DefaultLockDuration
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultIdleTTL
	}
	g := &Guard{
		config: config,
		states: make(map[string]*attemptState),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RecordFailure registers a failed attempt. A lock whose time has passed is
// cleared and counting restarts at 1. While a lock is active the attempt is
// rejected with ErrLocked and the count is left unchanged.
func (g *Guard) RecordFailure(principal string) (State, error) {
	g.mu.Lock()
	now := g.now()
	st, ok := g.states[principal]
	if !ok {
		st = &attemptState{}
		g.states[principal] = st
	}

	if !st.lockedUntil.IsZero() {
		if st.lockedUntil.After(now) {
			snapshot := st.snapshot(principal, now)
			g.mu.Unlock()
			return snapshot, ErrLocked
		}
		st.attempts = 1
		st.lockedUntil = time.Time{}
		st.lastFailure = now
		snapshot := st.snapshot(principal, now)
		g.mu.Unlock()
		return snapshot, nil
	}

	st.attempts++
	st.lastFailure = now
	var lockedUntil time.Time
	if st.attempts >= g.config.MaxAttempts {
		st.lockedUntil = now.Add(g.config.LockDuration)
		lockedUntil = st.lockedUntil
	}
	snapshot := st.snapshot(principal, now)
	hook := g.onLock
	g.mu.Unlock()

	if !lockedUntil.IsZero() {
		logging.LockoutEngaged(principal, lockedUntil)
		if hook != nil {
			hook(principal, lockedUntil)
		}
	}
	return snapshot, nil
}

// RecordSuccess clears the attempt count and any lock
func (g *Guard) RecordSuccess(principal string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.states, principal)
}

// IsLocked reports whether the principal has a lock that has not yet elapsed
func (g *Guard) IsLocked(principal string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.states[principal]
	return ok && st.lockedUntil.After(g.now())
}

// State returns the current tracking snapshot for a principal
func (g *Guard) State(principal string) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.states[principal]
	if !ok {
		return State{Principal: principal}
	}
	return st.snapshot(principal, g.now())
}

// Prune drops principals whose lock elapsed before cutoff, and unlocked
// principals whose last failure is more than IdleTTL before cutoff. It returns
// how many were removed.
func (g *Guard) Prune(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	idleCutoff := cutoff.Add(-g.config.IdleTTL)
	removed := 0
	for principal, st := range g.states {
		if st.stale(cutoff, idleCutoff) {
			delete(g.states, principal)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked principals
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.states)
}

func (st *attemptState) stale(cutoff, idleCutoff time.Time) bool {
	if !st.lockedUntil.IsZero() {
		return st.lockedUntil.Before(cutoff)
	}
	return st.lastFailure.Before(idleCutoff)
}

func (st *attemptState) snapshot(principal string, now time.Time) State {
	s := State{Principal: principal, AttemptCount: st.attempts}
	if !st.lockedUntil.IsZero() {
		until := st.lockedUntil
		s.LockedUntil = &until
		s.Locked = until.After(now)
	}
	return s
}
