package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg := NewServerConfig()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreTypeMemory, cfg.DeploymentStore.Type)
	assert.Equal(t, StoreTypeMemory, cfg.MetricStore.Type)
	assert.Equal(t, SchedulerEmbedded, cfg.Scheduler.Type)
	assert.Equal(t, 5*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, "/health", cfg.Probe.HealthPath)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.Period)
	assert.Equal(t, 5, cfg.Lockout.MaxAttempts)
	assert.Equal(t, 2*time.Hour, cfg.Lockout.LockDuration)
	assert.Empty(t, cfg.Archive.Bucket)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STACKPULSE_PORT", "9090")
	t.Setenv("STACKPULSE_DEBUG", "yes")
	t.Setenv("STACKPULSE_DEPLOYMENT_STORE", "dynamodb")
	t.Setenv("STACKPULSE_DYNAMODB_TABLE", "deployments")
	t.Setenv("STACKPULSE_DYNAMODB_REGION", "us-east-1")
	t.Setenv("STACKPULSE_METRIC_STORE", "redis")
	t.Setenv("STACKPULSE_METRIC_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("STACKPULSE_SCHEDULER", "distributed")
	t.Setenv("STACKPULSE_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("STACKPULSE_WORKERS", "8")
	t.Setenv("STACKPULSE_PROBE_INTERVAL", "1m")
	t.Setenv("STACKPULSE_LOCKOUT_DURATION", "30m")
	t.Setenv("STACKPULSE_ARCHIVE_BUCKET", "archive")
	t.Setenv("STACKPULSE_ARCHIVE_REGION", "us-east-1")

	cfg := NewServerConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "dynamodb", cfg.DeploymentStore.Type)
	assert.Equal(t, "deployments", cfg.DeploymentStore.Table)
	assert.Equal(t, "redis", cfg.MetricStore.Type)
	assert.Equal(t, "distributed", cfg.Scheduler.Type)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
	assert.Equal(t, time.Minute, cfg.Probe.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Lockout.LockDuration)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "redis://localhost:6379/2", cfg.DispatcherSettings().RedisURL)
	assert.Equal(t, 30*24*time.Hour, cfg.MetricStoreSettings().Retention)
	assert.Equal(t, "archive", cfg.ArchiveSettings().Bucket)
	assert.Equal(t, "us-east-1", cfg.DeploymentStoreSettings().Region)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"STACKPULSE_PORT", "eighty"},
		{"STACKPULSE_DEBUG", "maybe"},
		{"STACKPULSE_WORKERS", "many"},
		{"STACKPULSE_PROBE_TIMEOUT", "5 seconds"},
		{"STACKPULSE_LOCKOUT_MAX_ATTEMPTS", "five"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			err := NewServerConfig().LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *ServerConfig)
		wantErr string
	}{
		{"port too high", func(c *ServerConfig) { c.Port = 70000 }, "invalid port"},
		{"unknown deployment store", func(c *ServerConfig) { c.DeploymentStore.Type = "file" }, "invalid deployment store"},
		{"dynamodb without region", func(c *ServerConfig) { c.DeploymentStore.Type = StoreTypeDynamoDB }, "region"},
		{"redis metrics without url", func(c *ServerConfig) { c.MetricStore.Type = StoreTypeRedis }, "redis URL"},
		{"unknown metric store", func(c *ServerConfig) { c.MetricStore.Type = "influx" }, "invalid metric store"},
		{"distributed without url", func(c *ServerConfig) { c.Scheduler.Type = SchedulerDistributed }, "distributed"},
		{"unknown scheduler", func(c *ServerConfig) { c.Scheduler.Type = "cron" }, "invalid scheduler"},
		{"no workers", func(c *ServerConfig) { c.Scheduler.Workers = 0 }, "workers"},
		{"zero probe timeout", func(c *ServerConfig) { c.Probe.Timeout = 0 }, "probe timeout"},
		{"relative health path", func(c *ServerConfig) { c.Probe.HealthPath = "health" }, "health path"},
		{"zero retention", func(c *ServerConfig) { c.Retention.Period = 0 }, "retention"},
		{"zero lockout attempts", func(c *ServerConfig) { c.Lockout.MaxAttempts = 0 }, "lockout"},
		{"archive without region", func(c *ServerConfig) { c.Archive.Bucket = "b" }, "S3 region"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewServerConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetSanitized(t *testing.T) {
	t.Parallel()

	cfg := NewServerConfig()
	cfg.MetricStore.Type = StoreTypeRedis
	cfg.MetricStore.RedisURL = "redis://:secret@redis:6379/0"
	cfg.Scheduler.RedisURL = "redis://:secret@redis:6379/1"

	sanitized := cfg.GetSanitized()
	assert.Equal(t, 8080, sanitized["port"])
	assert.Equal(t, "redis", sanitized["metric_store"])
	assert.NotContains(t, sanitized, "metric_redis_configured")

	cfg.Debug = true
	sanitized = cfg.GetSanitized()
	assert.Equal(t, true, sanitized["metric_redis_configured"])

	out := cfg.ToJSON()
	assert.NotContains(t, out, "secret")
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "5s", decoded["probe"].(map[string]interface{})["timeout"])
}

func TestGetPort(t *testing.T) {
	t.Setenv("STACKPULSE_PORT", "")
	assert.Equal(t, 8080, GetPort())

	t.Setenv("STACKPULSE_PORT", "9000")
	assert.Equal(t, 9000, GetPort())

	t.Setenv("STACKPULSE_PORT", "0")
	assert.Equal(t, 8080, GetPort())
}
