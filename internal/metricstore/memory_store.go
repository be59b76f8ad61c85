package metricstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// MemoryStore keeps samples per deployment in timestamp order
type MemoryStore struct {
	mu      sync.RWMutex
	series  map[interfaces.DeploymentID][]interfaces.MetricSample
	deleted map[interfaces.DeploymentID]struct{}
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory metric store
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates a store using the given clock for windows and defaults
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		series:  make(map[interfaces.DeploymentID][]interfaces.MetricSample),
		deleted: make(map[interfaces.DeploymentID]struct{}),
		now:     now,
	}
}

// Record validates and inserts the sample in timestamp order
func (m *MemoryStore) Record(_ context.Context, sample *interfaces.MetricSample) error {
	if err := prepareSample(sample, m.now()); err != nil {
		return err
	}
	stored := cloneSample(*sample)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, gone := m.deleted[stored.DeploymentID]; gone {
		return fmt.Errorf("%w: %s", ErrDeploymentDeleted, stored.DeploymentID)
	}

	series := m.series[stored.DeploymentID]
	// Insert after any sample with the same timestamp to keep arrival order
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].Timestamp.After(stored.Timestamp)
	})
	series = append(series, interfaces.MetricSample{})
	copy(series[idx+1:], series[idx:])
	series[idx] = stored
	m.series[stored.DeploymentID] = series
	return nil
}

// Query returns matching samples with timestamp >= now - window, newest first
func (m *MemoryStore) Query(_ context.Context, q interfaces.MetricQuery) ([]interfaces.MetricSample, error) {
	cutoff, err := queryCutoff(q, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	series := m.series[q.DeploymentID]
	start := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(cutoff)
	})

	result := make([]interfaces.MetricSample, 0, len(series)-start)
	for i := len(series) - 1; i >= start; i-- {
		if matches(q, &series[i]) {
			result = append(result, cloneSample(series[i]))
		}
	}
	return result, nil
}

// DeleteAll drops every sample of the deployment and rejects later writes for it
func (m *MemoryStore) DeleteAll(_ context.Context, id interfaces.DeploymentID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := len(m.series[id])
	delete(m.series, id)
	m.deleted[id] = struct{}{}
	return removed, nil
}

// Expire drops samples with a timestamp before cutoff
func (m *MemoryStore) Expire(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, series := range m.series {
		idx := sort.Search(len(series), func(i int) bool {
			return !series[i].Timestamp.Before(cutoff)
		})
		if idx == 0 {
			continue
		}
		removed += idx
		if idx == len(series) {
			delete(m.series, id)
			continue
		}
		m.series[id] = append([]interfaces.MetricSample(nil), series[idx:]...)
	}
	return removed, nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Len returns the number of stored samples for a deployment
func (m *MemoryStore) Len(id interfaces.DeploymentID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.series[id])
}
