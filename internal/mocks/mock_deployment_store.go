package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// MockDeploymentStore implements interfaces.DeploymentStore for testing
type MockDeploymentStore struct {
	deployments map[interfaces.DeploymentID]*interfaces.Deployment
	shouldFail  map[string]error
	failAfter   map[string]int
	mutex       sync.RWMutex
	calls       []MethodCall
}

// MethodCall represents a method call for testing purposes
type MethodCall struct {
	Method string
	Args   []interface{}
}

// NewMockDeploymentStore creates a new mock deployment store
func NewMockDeploymentStore() *MockDeploymentStore {
	return &MockDeploymentStore{
		deployments: make(map[interfaces.DeploymentID]*interfaces.Deployment),
		shouldFail:  make(map[string]error),
		failAfter:   make(map[string]int),
		calls:       make([]MethodCall, 0),
	}
}

// SetShouldFail configures the mock to fail for specific methods
func (m *MockDeploymentStore) SetShouldFail(method string, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.shouldFail[method] = err
}

// SetFailAfter lets the first n calls of method succeed before SetShouldFail takes effect
func (m *MockDeploymentStore) SetFailAfter(method string, n int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failAfter[method] = n
}

// checkShouldFail checks if a method should fail. Callers hold the write lock.
func (m *MockDeploymentStore) checkShouldFail(method string) error {
	if n, ok := m.failAfter[method]; ok && n > 0 {
		m.failAfter[method] = n - 1
		return nil
	}
	if err, ok := m.shouldFail[method]; ok {
		return err
	}
	return nil
}

// Put stores a copy of the deployment
func (m *MockDeploymentStore) Put(_ context.Context, deployment *interfaces.Deployment) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.recordCall("Put", deployment.ID)

	if err := m.checkShouldFail("Put"); err != nil {
		return err
	}

	m.deployments[deployment.ID] = deployment.Clone()
	return nil
}

// Get retrieves a copy of a deployment by ID
func (m *MockDeploymentStore) Get(_ context.Context, id interfaces.DeploymentID) (*interfaces.Deployment, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.recordCall("Get", id)

	if err := m.checkShouldFail("Get"); err != nil {
		return nil, err
	}

	deployment, ok := m.deployments[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, interfaces.ErrNotFound)
	}
	return deployment.Clone(), nil
}

// List returns copies of all deployments matching the filter
func (m *MockDeploymentStore) List(_ context.Context, filter interfaces.DeploymentFilter) ([]*interfaces.Deployment, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.recordCall("List", filter)

	if err := m.checkShouldFail("List"); err != nil {
		return nil, err
	}

	deployments := make([]*interfaces.Deployment, 0, len(m.deployments))
	for _, deployment := range m.deployments {
		if filter.Matches(deployment) {
			deployments = append(deployments, deployment.Clone())
		}
	}
	return deployments, nil
}

// Delete removes a deployment
func (m *MockDeploymentStore) Delete(_ context.Context, id interfaces.DeploymentID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.recordCall("Delete", id)

	if err := m.checkShouldFail("Delete"); err != nil {
		return err
	}

	if _, ok := m.deployments[id]; !ok {
		return fmt.Errorf("deployment %s: %w", id, interfaces.ErrNotFound)
	}
	delete(m.deployments, id)
	return nil
}

// Ping reports the configured failure, if any
func (m *MockDeploymentStore) Ping(_ context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.checkShouldFail("Ping")
}

// Has reports whether a deployment is stored, without recording a call
func (m *MockDeploymentStore) Has(id interfaces.DeploymentID) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.deployments[id]
	return ok
}

// recordCall records a method call. Callers hold the write lock.
func (m *MockDeploymentStore) recordCall(method string, args ...interface{}) {
	m.calls = append(m.calls, MethodCall{Method: method, Args: args})
}

// GetCalls returns all recorded method calls
func (m *MockDeploymentStore) GetCalls() []MethodCall {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	calls := make([]MethodCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CountCalls returns how many times method was called
func (m *MockDeploymentStore) CountCalls(method string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}
