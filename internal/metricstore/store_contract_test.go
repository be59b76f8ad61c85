package metricstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

var contractNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T, now func() time.Time) interfaces.MetricStore

func sample(dep string, typ interfaces.MetricType, value float64, ts time.Time) *interfaces.MetricSample {
	return &interfaces.MetricSample{
		DeploymentID: interfaces.DeploymentID(dep),
		Type:         typ,
		Unit:         interfaces.UnitMilliseconds,
		Value:        value,
		Timestamp:    ts,
		Service:      interfaces.MetricServiceBackend,
	}
}

// runStoreContract exercises behavior every MetricStore must share
//
//nolint:funlen // Contract test covering every store operation
func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Helper()
	clock := func() time.Time { return contractNow }

	t.Run("RecordThenQuery", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, clock)

		s := sample("dep-rq", interfaces.MetricResponseTime, 42, contractNow)
		require.NoError(t, store.Record(ctx, s))
		assert.NotEmpty(t, s.ID)

		got, err := store.Query(ctx, interfaces.MetricQuery{DeploymentID: "dep-rq", TimeRange: interfaces.TimeRangeHour})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 42.0, got[0].Value)
		assert.Equal(t, s.ID, got[0].ID)
	})

	t.Run("WindowExcludesOlderSamples", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, clock)

		require.NoError(t, store.Record(ctx, sample("dep-win", interfaces.MetricCPUUsage, 1, contractNow.Add(-2*time.Hour))))

		got, err := store.Query(ctx, interfaces.MetricQuery{DeploymentID: "dep-win", TimeRange: interfaces.TimeRangeHour})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = store.Query(ctx, interfaces.MetricQuery{DeploymentID: "dep-win", TimeRange: interfaces.TimeRangeDay})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("NewestFirstAndFilters", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, clock)

		for i := 0; i < 5; i++ {
			require.NoError(t, store.Record(ctx, sample("dep-order", interfaces.MetricLatency, float64(i), contractNow.Add(-time.Duration(5-i)*time.Minute))))
		}
		other := sample("dep-order", interfaces.MetricErrorRate, 99, contractNow.Add(-30*time.Second))
		other.Unit = interfaces.UnitPercent
		other.Service = interfaces.MetricServiceFrontend
		require.NoError(t, store.Record(ctx, other))

		got, err := store.Query(ctx, interfaces.MetricQuery{
			DeploymentID: "dep-order",
			Type:         interfaces.MetricLatency,
			TimeRange:    interfaces.TimeRangeHour,
		})
		require.NoError(t, err)
		require.Len(t, got, 5)
		for i := 0; i < 5; i++ {
			assert.Equal(t, float64(4-i), got[i].Value)
		}

		frontend, err := store.Query(ctx, interfaces.MetricQuery{
			DeploymentID: "dep-order",
			Service:      interfaces.MetricServiceFrontend,
			TimeRange:    interfaces.TimeRangeHour,
		})
		require.NoError(t, err)
		require.Len(t, frontend, 1)
		assert.Equal(t, interfaces.MetricErrorRate, frontend[0].Type)
	})

	t.Run("RejectsInvalidSamples", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, clock)

		bad := sample("dep-bad", "bogus", 1, contractNow)
		assert.ErrorIs(t, store.Record(ctx, bad), ErrInvalidMetric)

		badUnit := sample("dep-bad", interfaces.MetricUptime, 1, contractNow)
		badUnit.Unit = "furlongs"
		assert.ErrorIs(t, store.Record(ctx, badUnit), ErrInvalidMetric)

		badService := sample("dep-bad", interfaces.MetricUptime, 1, contractNow)
		badService.Service = "cache"
		assert.ErrorIs(t, store.Record(ctx, badService), ErrInvalidService)

		_, err := store.Query(ctx, interfaces.MetricQuery{DeploymentID: "dep-bad", TimeRange: "2h"})
		assert.ErrorIs(t, err, ErrInvalidTimeRange)
	})

	t.Run("DeleteAllIsFinal", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, clock)

		for i := 0; i < 3; i++ {
			require.NoError(t, store.Record(ctx, sample("dep-del", interfaces.MetricThroughput, float64(i), contractNow)))
		}
		require.NoError(t, store.Record(ctx, sample("dep-keep", interfaces.MetricThroughput, 7, contractNow)))

		removed, err := store.DeleteAll(ctx, "dep-del")
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		err = store.Record(ctx, sample("dep-del", interfaces.MetricThroughput, 9, contractNow))
		assert.ErrorIs(t, err, ErrDeploymentDeleted)

		got, err := store.Query(ctx, interfaces.MetricQuery{DeploymentID: "dep-del", TimeRange: interfaces.TimeRangeMonth})
		require.NoError(t, err)
		assert.Empty(t, got)

		kept, err := store.Query(ctx, interfaces.MetricQuery{DeploymentID: "dep-keep", TimeRange: interfaces.TimeRangeMonth})
		require.NoError(t, err)
		assert.Len(t, kept, 1)
	})

	t.Run("DeleteAllRacingRecords", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, clock)

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					_ = store.Record(ctx, sample("dep-race", interfaces.MetricRequestCount, float64(w*100+i), contractNow))
				}
			}(w)
		}
		_, err := store.DeleteAll(ctx, "dep-race")
		require.NoError(t, err)
		wg.Wait()

		// Anything recorded before the delete is gone and anything after was refused
		got, err := store.Query(ctx, interfaces.MetricQuery{DeploymentID: "dep-race", TimeRange: interfaces.TimeRangeMonth})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ExpireDropsOldSamples", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, clock)

		for i, age := range []time.Duration{31 * 24 * time.Hour, 40 * 24 * time.Hour, time.Hour} {
			require.NoError(t, store.Record(ctx, sample(fmt.Sprintf("dep-exp-%d", i%2), interfaces.MetricDiskUsage, float64(i), contractNow.Add(-age))))
		}

		removed, err := store.Expire(ctx, contractNow.Add(-Retention))
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		got, err := store.Query(ctx, interfaces.MetricQuery{DeploymentID: "dep-exp-0", TimeRange: interfaces.TimeRangeMonth})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 2.0, got[0].Value)
	})
}
