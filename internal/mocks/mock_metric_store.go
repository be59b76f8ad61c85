package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// MetricStore is a testify mock of interfaces.MetricStore
type MetricStore struct {
	mock.Mock
}

// Record mocks recording a sample
func (m *MetricStore) Record(ctx context.Context, sample *interfaces.MetricSample) error {
	args := m.Called(ctx, sample)
	return args.Error(0)
}

// Query mocks a windowed query
func (m *MetricStore) Query(ctx context.Context, query interfaces.MetricQuery) ([]interfaces.MetricSample, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.MetricSample), args.Error(1)
}

// DeleteAll mocks the deployment cascade delete
func (m *MetricStore) DeleteAll(ctx context.Context, id interfaces.DeploymentID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

// Expire mocks the retention sweep
func (m *MetricStore) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

// Ping mocks the health check
func (m *MetricStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
