package metricstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/pkg/logging"
)

// DefaultKeyPrefix namespaces every key written by the Redis store
const DefaultKeyPrefix = "stackpulse:metrics"

var allMetricTypes = []interfaces.MetricType{
	interfaces.MetricResponseTime, interfaces.MetricErrorRate, interfaces.MetricRequestCount,
	interfaces.MetricCPUUsage, interfaces.MetricMemoryUsage, interfaces.MetricDiskUsage,
	interfaces.MetricNetworkIO, interfaces.MetricUptime, interfaces.MetricThroughput,
	interfaces.MetricLatency,
}

var allMetricServices = []interfaces.MetricService{
	interfaces.MetricServiceFrontend, interfaces.MetricServiceBackend,
	interfaces.MetricServiceDatabase, interfaces.MetricServiceOverall,
}

// Every key a script touches carries the deployment's {id} hash tag, so each
// script stays within one cluster slot. The cross-deployment index is
// maintained outside the scripts.

// recordScript writes a sample and its index entries unless the deployment
// has been deleted.
// KEYS: tombstone, data, all, type index, service index
// ARGV: sample id, score, encoded sample
var recordScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
redis.call('ZADD', KEYS[4], ARGV[2], ARGV[1])
redis.call('ZADD', KEYS[5], ARGV[2], ARGV[1])
return 1
`)

// deleteScript tombstones a deployment and drops all its keys.
// KEYS: tombstone, data, all, then every index key
var deleteScript = redis.NewScript(`
redis.call('SET', KEYS[1], '1')
local removed = redis.call('HLEN', KEYS[2])
for i = 2, #KEYS do
  redis.call('DEL', KEYS[i])
end
return removed
`)

// expireScript drops samples scored below the cutoff.
// KEYS: data, all, then every index key
// ARGV: exclusive cutoff score
var expireScript = redis.NewScript(`
local max = '(' .. ARGV[1]
local ids = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', max)
if #ids == 0 then
  return 0
end
for i = 1, #ids, 500 do
  local last = math.min(i + 499, #ids)
  redis.call('HDEL', KEYS[1], unpack(ids, i, last))
end
for i = 2, #KEYS do
  redis.call('ZREMRANGEBYSCORE', KEYS[i], '-inf', max)
end
return #ids
`)

// RedisStore keeps samples in Redis. Each deployment has a hash of encoded
// samples plus sorted-set indexes scored by timestamp in milliseconds: one
// over all samples, one per metric type and one per service.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisStoreConfig configures a RedisStore
type RedisStoreConfig struct {
	URL       string
	KeyPrefix string
}

// NewRedisStoreFromURL connects to Redis and verifies the connection
func NewRedisStoreFromURL(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(client, cfg.KeyPrefix), nil
}

// NewRedisStore wraps an existing client
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisStore) deploymentsKey() string { return r.prefix + ":deployments" }

func (r *RedisStore) tombstoneKey(id interfaces.DeploymentID) string {
	return fmt.Sprintf("%s:{%s}:deleted", r.prefix, id)
}

func (r *RedisStore) dataKey(id interfaces.DeploymentID) string {
	return fmt.Sprintf("%s:{%s}:data", r.prefix, id)
}

func (r *RedisStore) allKey(id interfaces.DeploymentID) string {
	return fmt.Sprintf("%s:{%s}:all", r.prefix, id)
}

func (r *RedisStore) typeKey(id interfaces.DeploymentID, t interfaces.MetricType) string {
	return fmt.Sprintf("%s:{%s}:type:%s", r.prefix, id, t)
}

func (r *RedisStore) serviceKey(id interfaces.DeploymentID, s interfaces.MetricService) string {
	return fmt.Sprintf("%s:{%s}:service:%s", r.prefix, id, s)
}

func (r *RedisStore) indexKeys(id interfaces.DeploymentID) []string {
	keys := make([]string, 0, len(allMetricTypes)+len(allMetricServices))
	for _, t := range allMetricTypes {
		keys = append(keys, r.typeKey(id, t))
	}
	for _, s := range allMetricServices {
		keys = append(keys, r.serviceKey(id, s))
	}
	return keys
}

func (r *RedisStore) recordKeys(sample *interfaces.MetricSample) []string {
	id := sample.DeploymentID
	return []string{
		r.tombstoneKey(id),
		r.dataKey(id),
		r.allKey(id),
		r.typeKey(id, sample.Type),
		r.serviceKey(id, sample.Service),
	}
}

func (r *RedisStore) deleteKeys(id interfaces.DeploymentID) []string {
	return append([]string{r.tombstoneKey(id), r.dataKey(id), r.allKey(id)}, r.indexKeys(id)...)
}

func (r *RedisStore) expireKeys(id interfaces.DeploymentID) []string {
	return append([]string{r.dataKey(id), r.allKey(id)}, r.indexKeys(id)...)
}

func score(t time.Time) int64 {
	return t.UnixMilli()
}

// Record validates the sample and writes it with its index entries atomically
func (r *RedisStore) Record(ctx context.Context, sample *interfaces.MetricSample) error {
	if err := prepareSample(sample, r.now()); err != nil {
		return err
	}
	encoded, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}

	id := sample.DeploymentID
	written, err := recordScript.Run(ctx, r.client, r.recordKeys(sample), sample.ID, score(sample.Timestamp), encoded).Int()
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("%w: %s", ErrDeploymentDeleted, id)
	}
	// A racing DeleteAll can leave a stale id here; Expire drops it
	if err := r.client.SAdd(ctx, r.deploymentsKey(), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to index deployment: %w", err)
	}
	return nil
}

// Query reads the most selective index inside the window, newest first
func (r *RedisStore) Query(ctx context.Context, q interfaces.MetricQuery) ([]interfaces.MetricSample, error) {
	cutoff, err := queryCutoff(q, r.now())
	if err != nil {
		return nil, err
	}

	index := r.allKey(q.DeploymentID)
	switch {
	case q.Type != "":
		index = r.typeKey(q.DeploymentID, q.Type)
	case q.Service != "":
		index = r.serviceKey(q.DeploymentID, q.Service)
	}

	ids, err := r.client.ZRevRangeByScore(ctx, index, &redis.ZRangeBy{
		Max: "+inf",
		Min: strconv.FormatInt(score(cutoff), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	if len(ids) == 0 {
		return []interfaces.MetricSample{}, nil
	}

	values, err := r.client.HMGet(ctx, r.dataKey(q.DeploymentID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load samples: %w", err)
	}

	result := make([]interfaces.MetricSample, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry whose sample was expired between the two reads
			continue
		}
		var s interfaces.MetricSample
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			logging.Metrics.Warn("Skipping unreadable sample %s: %v", ids[i], err)
			continue
		}
		if s.Timestamp.Before(cutoff) || !matches(q, &s) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

// DeleteAll removes every key of the deployment and tombstones its id
func (r *RedisStore) DeleteAll(ctx context.Context, id interfaces.DeploymentID) (int, error) {
	removed, err := deleteScript.Run(ctx, r.client, r.deleteKeys(id)).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to delete metrics for %s: %w", id, err)
	}
	if err := r.client.SRem(ctx, r.deploymentsKey(), string(id)).Err(); err != nil {
		return removed, fmt.Errorf("failed to unindex deployment %s: %w", id, err)
	}
	logging.MetricOperation("delete_all", string(id), removed)
	return removed, nil
}

// Expire drops samples older than cutoff across all deployments
func (r *RedisStore) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := r.client.SMembers(ctx, r.deploymentsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list deployments: %w", err)
	}

	total := 0
	for _, raw := range ids {
		id := interfaces.DeploymentID(raw)
		deleted, err := r.client.Exists(ctx, r.tombstoneKey(id)).Result()
		if err != nil {
			return total, fmt.Errorf("failed to check deployment %s: %w", id, err)
		}
		if deleted == 1 {
			r.client.SRem(ctx, r.deploymentsKey(), raw)
			continue
		}
		n, err := expireScript.Run(ctx, r.client, r.expireKeys(id), score(cutoff)).Int()
		if err != nil {
			return total, fmt.Errorf("failed to expire metrics for %s: %w", id, err)
		}
		total += n
	}
	return total, nil
}

// Ping checks connectivity
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connectivity failed: %w", err)
	}
	return nil
}

// Close releases the client
func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
