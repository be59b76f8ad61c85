package deployment

import (
	"sync"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// keyedMutex serializes work per deployment id. Entries are reference counted
// and removed once no goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[interfaces.DeploymentID]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[interfaces.DeploymentID]*refLock)}
}

// Lock blocks until the id is free and returns the matching unlock func
func (k *keyedMutex) Lock(id interfaces.DeploymentID) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
