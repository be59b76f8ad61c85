package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// AppVersion is the application version, can be set at build time or runtime
var AppVersion = "dev"

// ServerConfig holds all configuration for the StackPulse server
type ServerConfig struct {
	// Server settings
	Port  int  `json:"port" env:"STACKPULSE_PORT" flag:"port" default:"8080" desc:"Server port"`
	Debug bool `json:"debug" env:"STACKPULSE_DEBUG" flag:"debug" default:"false" desc:"Enable debug mode"`

	// ConfigFile is the HCL file the configuration was loaded from, if any
	ConfigFile string `json:"config_file,omitempty" env:"STACKPULSE_CONFIG_FILE" flag:"config" desc:"HCL configuration file"`

	DeploymentStore DeploymentStoreConfig `json:"deployment_store"`
	MetricStore     MetricStoreConfig     `json:"metric_store"`
	Scheduler       SchedulerConfig       `json:"scheduler"`
	Probe           ProbeConfig           `json:"probe"`
	Retention       RetentionConfig       `json:"retention"`
	Lockout         LockoutConfig         `json:"lockout"`
	Archive         ArchiveConfig         `json:"archive"`
}

// DeploymentStoreConfig selects where deployments are persisted
type DeploymentStoreConfig struct {
	Type     string `json:"type" env:"STACKPULSE_DEPLOYMENT_STORE" flag:"deployment-store" default:"memory" desc:"Deployment store type (memory, dynamodb)"`
	Table    string `json:"table" env:"STACKPULSE_DYNAMODB_TABLE" desc:"DynamoDB table name"`
	Region   string `json:"region" env:"STACKPULSE_DYNAMODB_REGION" desc:"AWS region for the DynamoDB table"`
	Endpoint string `json:"endpoint" env:"STACKPULSE_DYNAMODB_ENDPOINT" desc:"Custom DynamoDB endpoint (for LocalStack)"`
}

// MetricStoreConfig selects where metric samples are kept
type MetricStoreConfig struct {
	Type      string `json:"type" env:"STACKPULSE_METRIC_STORE" flag:"metric-store" default:"memory" desc:"Metric store type (memory, redis)"`
	RedisURL  string `json:"redis_url" env:"STACKPULSE_METRIC_REDIS_URL" desc:"Redis URL for the metric store"`
	KeyPrefix string `json:"key_prefix" env:"STACKPULSE_METRIC_KEY_PREFIX" default:"stackpulse:metrics" desc:"Redis key prefix"`
}

// SchedulerConfig holds probe scheduling configuration
type SchedulerConfig struct {
	Type        string        `json:"type" env:"STACKPULSE_SCHEDULER" flag:"scheduler" default:"embedded" desc:"Scheduler type (embedded, distributed)"`
	Workers     int           `json:"workers" env:"STACKPULSE_WORKERS" default:"4" desc:"Concurrent probe cycles"`
	QueueSize   int           `json:"queue_size" env:"STACKPULSE_QUEUE_SIZE" default:"1000" desc:"Embedded queue capacity"`
	RedisURL    string        `json:"redis_url" env:"STACKPULSE_REDIS_URL" flag:"redis-url" desc:"Redis URL for distributed mode"`
	Queue       string        `json:"queue" env:"STACKPULSE_QUEUE" default:"probes" desc:"asynq queue name"`
	TaskTimeout time.Duration `json:"task_timeout" env:"STACKPULSE_TASK_TIMEOUT" default:"30s" desc:"Timeout for one probe cycle"`
}

// ProbeConfig holds liveness probe configuration
type ProbeConfig struct {
	Timeout    time.Duration `json:"timeout" env:"STACKPULSE_PROBE_TIMEOUT" default:"5s" desc:"Per probe HTTP timeout"`
	Interval   time.Duration `json:"interval" env:"STACKPULSE_PROBE_INTERVAL" flag:"probe-interval" default:"30s" desc:"Scan interval for active deployments"`
	HealthPath string        `json:"health_path" env:"STACKPULSE_HEALTH_PATH" default:"/health" desc:"Path appended to backend URLs"`
}

// RetentionConfig holds metric retention configuration
type RetentionConfig struct {
	Period        time.Duration `json:"period" env:"STACKPULSE_RETENTION" default:"720h" desc:"How long metric samples are kept"`
	SweepInterval time.Duration `json:"sweep_interval" env:"STACKPULSE_SWEEP_INTERVAL" default:"1h" desc:"How often expired samples are removed"`
}

// LockoutConfig holds login attempt lockout configuration
type LockoutConfig struct {
	MaxAttempts  int           `json:"max_attempts" env:"STACKPULSE_LOCKOUT_MAX_ATTEMPTS" default:"5" desc:"Failures before the account is locked"`
	LockDuration time.Duration `json:"lock_duration" env:"STACKPULSE_LOCKOUT_DURATION" default:"2h" desc:"How long a lock lasts"`
}

// ArchiveConfig holds the optional S3 archive for deleted deployments
type ArchiveConfig struct {
	Bucket   string `json:"bucket" env:"STACKPULSE_ARCHIVE_BUCKET" desc:"S3 bucket; empty disables archiving"`
	Prefix   string `json:"prefix" env:"STACKPULSE_ARCHIVE_PREFIX" default:"archive/" desc:"S3 key prefix"`
	Region   string `json:"region" env:"STACKPULSE_ARCHIVE_REGION" desc:"AWS region for the bucket"`
	Endpoint string `json:"endpoint" env:"STACKPULSE_ARCHIVE_ENDPOINT" desc:"Custom S3 endpoint (for LocalStack)"`
}

// NewServerConfig creates a new server configuration with defaults
func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: DefaultPort,
		DeploymentStore: DeploymentStoreConfig{
			Type:  StoreTypeMemory,
			Table: DefaultDynamoDBTable,
		},
		MetricStore: MetricStoreConfig{
			Type:      StoreTypeMemory,
			KeyPrefix: DefaultMetricKeyPrefix,
		},
		Scheduler: SchedulerConfig{
			Type:        SchedulerEmbedded,
			Workers:     DefaultWorkers,
			QueueSize:   DefaultQueueSize,
			Queue:       DefaultQueueName,
			TaskTimeout: 30 * time.Second,
		},
		Probe: ProbeConfig{
			Timeout:    DefaultProbeTimeout,
			Interval:   DefaultProbeInterval,
			HealthPath: DefaultHealthPath,
		},
		Retention: RetentionConfig{
			Period:        DefaultRetention,
			SweepInterval: DefaultSweepInterval,
		},
		Lockout: LockoutConfig{
			MaxAttempts:  DefaultMaxAttempts,
			LockDuration: DefaultLockDuration,
		},
		Archive: ArchiveConfig{
			Prefix: DefaultArchivePrefix,
		},
	}
}

// Load builds the configuration from defaults, the optional HCL file named by
// STACKPULSE_CONFIG_FILE, and then environment variables.
func Load() (*ServerConfig, error) {
	cfg := NewServerConfig()
	if path := os.Getenv("STACKPULSE_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables
func (c *ServerConfig) LoadFromEnv() error { //nolint:funlen,gocognit,gocyclo // Configuration loading function with many environment variables
	var err error

	// Server
	if port := os.Getenv("STACKPULSE_PORT"); port != "" {
		p, convErr := strconv.Atoi(port)
		if convErr != nil {
			return fmt.Errorf("invalid STACKPULSE_PORT value: %s", port)
		}
		c.Port = p
	}
	if debug := os.Getenv("STACKPULSE_DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "true", "1", "yes", "on":
			c.Debug = true
		case "false", "0", "no", "off":
			c.Debug = false
		default:
			return fmt.Errorf("invalid STACKPULSE_DEBUG value: %s", debug)
		}
	}

	// Deployment store
	setString(&c.DeploymentStore.Type, "STACKPULSE_DEPLOYMENT_STORE")
	setString(&c.DeploymentStore.Table, "STACKPULSE_DYNAMODB_TABLE")
	setString(&c.DeploymentStore.Region, "STACKPULSE_DYNAMODB_REGION")
	setString(&c.DeploymentStore.Endpoint, "STACKPULSE_DYNAMODB_ENDPOINT")

	// Metric store
	setString(&c.MetricStore.Type, "STACKPULSE_METRIC_STORE")
	setString(&c.MetricStore.RedisURL, "STACKPULSE_METRIC_REDIS_URL")
	setString(&c.MetricStore.KeyPrefix, "STACKPULSE_METRIC_KEY_PREFIX")

	// Scheduler
	setString(&c.Scheduler.Type, "STACKPULSE_SCHEDULER")
	setString(&c.Scheduler.RedisURL, "STACKPULSE_REDIS_URL")
	setString(&c.Scheduler.Queue, "STACKPULSE_QUEUE")
	if err = setInt(&c.Scheduler.Workers, "STACKPULSE_WORKERS"); err != nil {
		return err
	}
	if err = setInt(&c.Scheduler.QueueSize, "STACKPULSE_QUEUE_SIZE"); err != nil {
		return err
	}
	if err = setDuration(&c.Scheduler.TaskTimeout, "STACKPULSE_TASK_TIMEOUT"); err != nil {
		return err
	}

	// Probe
	if err = setDuration(&c.Probe.Timeout, "STACKPULSE_PROBE_TIMEOUT"); err != nil {
		return err
	}
	if err = setDuration(&c.Probe.Interval, "STACKPULSE_PROBE_INTERVAL"); err != nil {
		return err
	}
	setString(&c.Probe.HealthPath, "STACKPULSE_HEALTH_PATH")

	// Retention
	if err = setDuration(&c.Retention.Period, "STACKPULSE_RETENTION"); err != nil {
		return err
	}
	if err = setDuration(&c.Retention.SweepInterval, "STACKPULSE_SWEEP_INTERVAL"); err != nil {
		return err
	}

	// Lockout
	if err = setInt(&c.Lockout.MaxAttempts, "STACKPULSE_LOCKOUT_MAX_ATTEMPTS"); err != nil {
		return err
	}
	if err = setDuration(&c.Lockout.LockDuration, "STACKPULSE_LOCKOUT_DURATION"); err != nil {
		return err
	}

	// Archive
	setString(&c.Archive.Bucket, "STACKPULSE_ARCHIVE_BUCKET")
	setString(&c.Archive.Prefix, "STACKPULSE_ARCHIVE_PREFIX")
	setString(&c.Archive.Region, "STACKPULSE_ARCHIVE_REGION")
	setString(&c.Archive.Endpoint, "STACKPULSE_ARCHIVE_ENDPOINT")

	return nil
}

// Validate checks if the configuration is valid
func (c *ServerConfig) Validate() error { //nolint:gocyclo // One check per setting
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.DeploymentStore.Type {
	case StoreTypeMemory:
	case StoreTypeDynamoDB:
		if c.DeploymentStore.Table == "" {
			return fmt.Errorf("DynamoDB table is required when using the dynamodb deployment store")
		}
		if c.DeploymentStore.Region == "" {
			return fmt.Errorf("DynamoDB region is required when using the dynamodb deployment store")
		}
	default:
		return fmt.Errorf("invalid deployment store type: %s", c.DeploymentStore.Type)
	}

	switch c.MetricStore.Type {
	case StoreTypeMemory:
	case StoreTypeRedis:
		if c.MetricStore.RedisURL == "" {
			return fmt.Errorf("redis URL is required when using the redis metric store")
		}
	default:
		return fmt.Errorf("invalid metric store type: %s", c.MetricStore.Type)
	}

	switch c.Scheduler.Type {
	case SchedulerEmbedded:
	case SchedulerDistributed:
		if c.Scheduler.RedisURL == "" {
			return fmt.Errorf("redis URL is required when using the distributed scheduler")
		}
	default:
		return fmt.Errorf("invalid scheduler type: %s", c.Scheduler.Type)
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler workers must be positive")
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if c.Probe.Interval <= 0 {
		return fmt.Errorf("probe interval must be positive")
	}
	if !strings.HasPrefix(c.Probe.HealthPath, "/") {
		return fmt.Errorf("health path must start with '/': %q", c.Probe.HealthPath)
	}

	if c.Retention.Period <= 0 || c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("retention period and sweep interval must be positive")
	}
	if c.Lockout.MaxAttempts < 1 || c.Lockout.LockDuration <= 0 {
		return fmt.Errorf("lockout max attempts and lock duration must be positive")
	}

	if c.Archive.Bucket != "" && c.Archive.Region == "" {
		return fmt.Errorf("S3 region is required when an archive bucket is set")
	}

	return nil
}

// DeploymentStoreSettings converts the section for the component factory
func (c *ServerConfig) DeploymentStoreSettings() interfaces.DeploymentStoreConfig {
	return interfaces.DeploymentStoreConfig{
		Type:     c.DeploymentStore.Type,
		Table:    c.DeploymentStore.Table,
		Region:   c.DeploymentStore.Region,
		Endpoint: c.DeploymentStore.Endpoint,
	}
}

// MetricStoreSettings converts the section for the component factory
func (c *ServerConfig) MetricStoreSettings() interfaces.MetricStoreConfig {
	return interfaces.MetricStoreConfig{
		Type:      c.MetricStore.Type,
		RedisURL:  c.MetricStore.RedisURL,
		KeyPrefix: c.MetricStore.KeyPrefix,
		Retention: c.Retention.Period,
	}
}

// ArchiveSettings converts the section for the component factory
func (c *ServerConfig) ArchiveSettings() interfaces.ArchiveConfig {
	return interfaces.ArchiveConfig{
		Bucket:   c.Archive.Bucket,
		Prefix:   c.Archive.Prefix,
		Region:   c.Archive.Region,
		Endpoint: c.Archive.Endpoint,
	}
}

// DispatcherSettings converts the section for the component factory
func (c *ServerConfig) DispatcherSettings() interfaces.DispatcherConfig {
	return interfaces.DispatcherConfig{
		Type:        c.Scheduler.Type,
		Workers:     c.Scheduler.Workers,
		QueueSize:   c.Scheduler.QueueSize,
		RedisURL:    c.Scheduler.RedisURL,
		Queue:       c.Scheduler.Queue,
		TaskTimeout: c.Scheduler.TaskTimeout,
	}
}

// ToJSON returns the sanitized configuration as a JSON string
func (c *ServerConfig) ToJSON() string {
	data, _ := json.MarshalIndent(c.GetSanitized(), "", "  ")
	return string(data)
}

// GetSanitized returns a sanitized version of the config safe for logging
func (c *ServerConfig) GetSanitized() map[string]interface{} {
	sanitized := map[string]interface{}{
		"port":             c.Port,
		"debug":            c.Debug,
		"version":          AppVersion,
		"deployment_store": c.DeploymentStore.Type,
		"metric_store":     c.MetricStore.Type,
		"scheduler":        c.Scheduler.Type,
		"probe": map[string]interface{}{
			"timeout":     c.Probe.Timeout.String(),
			"interval":    c.Probe.Interval.String(),
			"health_path": c.Probe.HealthPath,
		},
		"retention": c.Retention.Period.String(),
		"lockout": map[string]interface{}{
			"max_attempts":  c.Lockout.MaxAttempts,
			"lock_duration": c.Lockout.LockDuration.String(),
		},
		"archive_enabled": c.Archive.Bucket != "",
	}

	// In debug mode, include backend status but never URLs with credentials
	if c.Debug {
		sanitized["config_file_loaded"] = c.ConfigFile != ""
		sanitized["metric_redis_configured"] = c.MetricStore.RedisURL != ""
		sanitized["scheduler_redis_configured"] = c.Scheduler.RedisURL != ""
		if c.DeploymentStore.Type == StoreTypeDynamoDB {
			sanitized["dynamodb"] = map[string]interface{}{
				"table":               c.DeploymentStore.Table,
				"region":              c.DeploymentStore.Region,
				"endpoint_configured": c.DeploymentStore.Endpoint != "",
			}
		}
	}

	return sanitized
}

// GetPort returns just the port from environment
// This is a lightweight alternative to loading the full config
func GetPort() int {
	portStr := os.Getenv("STACKPULSE_PORT")
	if portStr == "" {
		return DefaultPort
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return DefaultPort
	}

	return port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %s", key, v)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %s", key, v)
	}
	*dst = d
	return nil
}
