//go:build integration
// +build integration

package metricstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/testutil"
)

func TestRedisStore_Contract(t *testing.T) {
	container := testutil.SetupRedis(t)

	opt, err := redis.ParseURL(container.URL)
	require.NoError(t, err)

	n := 0
	runStoreContract(t, func(t *testing.T, now func() time.Time) interfaces.MetricStore {
		n++
		client := redis.NewClient(opt)
		t.Cleanup(func() { _ = client.Close() })
		store := NewRedisStore(client, fmt.Sprintf("test%d", n))
		store.now = now
		return store
	})
}

func TestRedisStore_FromURL(t *testing.T) {
	container := testutil.SetupRedis(t)
	ctx := context.Background()

	store, err := NewRedisStoreFromURL(ctx, RedisStoreConfig{URL: container.URL})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Ping(ctx))

	_, err = NewRedisStoreFromURL(ctx, RedisStoreConfig{URL: "not-a-url"})
	require.Error(t, err)
}
