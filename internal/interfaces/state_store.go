// Package interfaces defines the core types and interfaces shared by StackPulse components
package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a deployment does not exist
var ErrNotFound = errors.New("not found")

// DeploymentStore persists deployment aggregates keyed by id.
// Implementations store and return copies; callers never share state with the store.
type DeploymentStore interface {
	Put(ctx context.Context, deployment *Deployment) error
	Get(ctx context.Context, id DeploymentID) (*Deployment, error)
	List(ctx context.Context, filter DeploymentFilter) ([]*Deployment, error)
	Delete(ctx context.Context, id DeploymentID) error

	// Health check
	Ping(ctx context.Context) error
}

// MetricStore holds time-series samples per deployment with bounded retention
type MetricStore interface {
	// Record validates and appends one sample
	Record(ctx context.Context, sample *MetricSample) error

	// Query returns samples inside the query window, newest first
	Query(ctx context.Context, query MetricQuery) ([]MetricSample, error)

	// DeleteAll removes every sample of a deployment and refuses later writes for it
	DeleteAll(ctx context.Context, id DeploymentID) (int, error)

	// Expire drops samples with a timestamp before cutoff
	Expire(ctx context.Context, cutoff time.Time) (int, error)

	// Health check
	Ping(ctx context.Context) error
}

// Archiver keeps a copy of deleted deployments
type Archiver interface {
	Archive(ctx context.Context, deployment *Deployment) error
	Ping(ctx context.Context) error
}
