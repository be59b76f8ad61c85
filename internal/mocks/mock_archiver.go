package mocks

import (
	"context"
	"sync"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// MockArchiver implements interfaces.Archiver and keeps archived copies in memory
type MockArchiver struct {
	mu         sync.Mutex
	archived   map[interfaces.DeploymentID]*interfaces.Deployment
	shouldFail error
	calls      *CallTracker[CallWithDeploymentID]
}

// NewMockArchiver creates an archiver that succeeds until told otherwise
func NewMockArchiver() *MockArchiver {
	return &MockArchiver{
		archived: make(map[interfaces.DeploymentID]*interfaces.Deployment),
		calls:    NewCallTracker[CallWithDeploymentID](),
	}
}

// SetShouldFail makes every later Archive call return err. A nil err restores success.
func (m *MockArchiver) SetShouldFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = err
}

// Archive stores a copy of the deployment
func (m *MockArchiver) Archive(_ context.Context, deployment *interfaces.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.shouldFail
	m.calls.RecordCall(NewCallWithDeploymentID("Archive", string(deployment.ID), err))
	if err != nil {
		return err
	}
	m.archived[deployment.ID] = deployment.Clone()
	return nil
}

// Ping always succeeds
func (m *MockArchiver) Ping(_ context.Context) error {
	return nil
}

// Archived returns the archived copy of a deployment, if any
func (m *MockArchiver) Archived(id interfaces.DeploymentID) (*interfaces.Deployment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.archived[id]
	return d, ok
}

// Calls exposes the call history
func (m *MockArchiver) Calls() *CallTracker[CallWithDeploymentID] {
	return m.calls
}
