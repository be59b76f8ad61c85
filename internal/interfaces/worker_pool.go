package interfaces

import (
	"context"
)

// ProbeRunner executes one health check cycle for a deployment
type ProbeRunner interface {
	RunProbeCycle(ctx context.Context, id DeploymentID) error
}

// ProbeDispatcher schedules probe cycles onto background workers
type ProbeDispatcher interface {
	// Lifecycle
	Start() error
	Stop(ctx context.Context) error

	// Dispatch queues a probe cycle for the deployment. Dispatching a deployment
	// whose cycle is still pending is a no-op.
	Dispatch(ctx context.Context, id DeploymentID) error

	// Status
	IsHealthy() bool
	GetWorkerCount() int
	GetQueuedCount() int
}
