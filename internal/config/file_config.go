package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/stackpulse/stackpulse/pkg/logging"
)

// fileConfig mirrors the HCL layout. Every attribute is optional and only
// overrides the current value when present.
type fileConfig struct {
	Server          *serverBlock          `hcl:"server,block"`
	DeploymentStore *deploymentStoreBlock `hcl:"deployment_store,block"`
	MetricStore     *metricStoreBlock     `hcl:"metric_store,block"`
	Scheduler       *schedulerBlock       `hcl:"scheduler,block"`
	Probe           *probeBlock           `hcl:"probe,block"`
	Retention       *retentionBlock       `hcl:"retention,block"`
	Lockout         *lockoutBlock         `hcl:"lockout,block"`
	Archive         *archiveBlock         `hcl:"archive,block"`
}

type serverBlock struct {
	Port  *int  `hcl:"port,optional"`
	Debug *bool `hcl:"debug,optional"`
}

type deploymentStoreBlock struct {
	Type     *string `hcl:"type,optional"`
	Table    *string `hcl:"table,optional"`
	Region   *string `hcl:"region,optional"`
	Endpoint *string `hcl:"endpoint,optional"`
}

type metricStoreBlock struct {
	Type      *string `hcl:"type,optional"`
	RedisURL  *string `hcl:"redis_url,optional"`
	KeyPrefix *string `hcl:"key_prefix,optional"`
}

type schedulerBlock struct {
	Type        *string `hcl:"type,optional"`
	Workers     *int    `hcl:"workers,optional"`
	QueueSize   *int    `hcl:"queue_size,optional"`
	RedisURL    *string `hcl:"redis_url,optional"`
	Queue       *string `hcl:"queue,optional"`
	TaskTimeout *string `hcl:"task_timeout,optional"`
}

type probeBlock struct {
	Timeout    *string `hcl:"timeout,optional"`
	Interval   *string `hcl:"interval,optional"`
	HealthPath *string `hcl:"health_path,optional"`
}

type retentionBlock struct {
	Period        *string `hcl:"period,optional"`
	SweepInterval *string `hcl:"sweep_interval,optional"`
}

type lockoutBlock struct {
	MaxAttempts  *int    `hcl:"max_attempts,optional"`
	LockDuration *string `hcl:"lock_duration,optional"`
}

type archiveBlock struct {
	Bucket   *string `hcl:"bucket,optional"`
	Prefix   *string `hcl:"prefix,optional"`
	Region   *string `hcl:"region,optional"`
	Endpoint *string `hcl:"endpoint,optional"`
}

// LoadFile applies an HCL configuration file on top of the current values.
// Expressions can read environment variables through env.NAME and call a
// small set of string functions.
func (c *ServerConfig) LoadFile(path string) error {
	src, err := os.ReadFile(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := c.LoadHCL(src, path); err != nil {
		return err
	}
	c.ConfigFile = path
	logging.Config.Info("Loaded configuration file %s", path)
	return nil
}

// LoadHCL applies HCL source on top of the current values
func (c *ServerConfig) LoadHCL(src []byte, filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %s", filename, diags.Error())
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &fc); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %s", filename, diags.Error())
	}
	return c.apply(&fc)
}

// evalContext exposes the process environment as the env object
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}

	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
		Functions: map[string]function.Function{
			"lower":     stdlib.LowerFunc,
			"upper":     stdlib.UpperFunc,
			"trimspace": stdlib.TrimSpaceFunc,
			"format":    stdlib.FormatFunc,
			"join":      stdlib.JoinFunc,
			"coalesce":  stdlib.CoalesceFunc,
			"parseint":  stdlib.ParseIntFunc,
			"min":       stdlib.MinFunc,
			"max":       stdlib.MaxFunc,
		},
	}
}

func (c *ServerConfig) apply(fc *fileConfig) error { //nolint:gocognit,gocyclo // One branch per optional attribute
	if b := fc.Server; b != nil {
		assign(&c.Port, b.Port)
		assign(&c.Debug, b.Debug)
	}
	if b := fc.DeploymentStore; b != nil {
		assign(&c.DeploymentStore.Type, b.Type)
		assign(&c.DeploymentStore.Table, b.Table)
		assign(&c.DeploymentStore.Region, b.Region)
		assign(&c.DeploymentStore.Endpoint, b.Endpoint)
	}
	if b := fc.MetricStore; b != nil {
		assign(&c.MetricStore.Type, b.Type)
		assign(&c.MetricStore.RedisURL, b.RedisURL)
		assign(&c.MetricStore.KeyPrefix, b.KeyPrefix)
	}
	if b := fc.Scheduler; b != nil {
		assign(&c.Scheduler.Type, b.Type)
		assign(&c.Scheduler.Workers, b.Workers)
		assign(&c.Scheduler.QueueSize, b.QueueSize)
		assign(&c.Scheduler.RedisURL, b.RedisURL)
		assign(&c.Scheduler.Queue, b.Queue)
		if err := assignDuration(&c.Scheduler.TaskTimeout, b.TaskTimeout, "scheduler.task_timeout"); err != nil {
			return err
		}
	}
	if b := fc.Probe; b != nil {
		if err := assignDuration(&c.Probe.Timeout, b.Timeout, "probe.timeout"); err != nil {
			return err
		}
		if err := assignDuration(&c.Probe.Interval, b.Interval, "probe.interval"); err != nil {
			return err
		}
		assign(&c.Probe.HealthPath, b.HealthPath)
	}
	if b := fc.Retention; b != nil {
		if err := assignDuration(&c.Retention.Period, b.Period, "retention.period"); err != nil {
			return err
		}
		if err := assignDuration(&c.Retention.SweepInterval, b.SweepInterval, "retention.sweep_interval"); err != nil {
			return err
		}
	}
	if b := fc.Lockout; b != nil {
		assign(&c.Lockout.MaxAttempts, b.MaxAttempts)
		if err := assignDuration(&c.Lockout.LockDuration, b.LockDuration, "lockout.lock_duration"); err != nil {
			return err
		}
	}
	if b := fc.Archive; b != nil {
		assign(&c.Archive.Bucket, b.Bucket)
		assign(&c.Archive.Prefix, b.Prefix)
		assign(&c.Archive.Region, b.Region)
		assign(&c.Archive.Endpoint, b.Endpoint)
	}
	return nil
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func assignDuration(dst *time.Duration, src *string, name string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %q", name, *src)
	}
	*dst = d
	return nil
}
