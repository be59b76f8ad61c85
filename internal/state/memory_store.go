// Package state provides deployment storage and archive implementations
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// MemoryStore keeps deployments in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	deployments map[interfaces.DeploymentID]*interfaces.Deployment
}

// NewMemoryStore creates an empty in-memory deployment store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deployments: make(map[interfaces.DeploymentID]*interfaces.Deployment),
	}
}

// Put stores a copy of the deployment, replacing any previous version
func (m *MemoryStore) Put(_ context.Context, d *interfaces.Deployment) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("deployment id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployments[d.ID] = d.Clone()
	return nil
}

// Get returns a copy of the deployment
func (m *MemoryStore) Get(_ context.Context, id interfaces.DeploymentID) (*interfaces.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deployments[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, interfaces.ErrNotFound)
	}
	return d.Clone(), nil
}

// List returns copies of all deployments matching the filter
func (m *MemoryStore) List(_ context.Context, filter interfaces.DeploymentFilter) ([]*interfaces.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*interfaces.Deployment, 0, len(m.deployments))
	for _, d := range m.deployments {
		if filter.Matches(d) {
			result = append(result, d.Clone())
		}
	}
	return result, nil
}

// Delete removes the deployment
func (m *MemoryStore) Delete(_ context.Context, id interfaces.DeploymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deployments[id]; !ok {
		return fmt.Errorf("deployment %s: %w", id, interfaces.ErrNotFound)
	}
	delete(m.deployments, id)
	return nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}
