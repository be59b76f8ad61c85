package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/stackpulse/stackpulse/internal/deployment"
	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/logging"
	"github.com/stackpulse/stackpulse/internal/metrics"
	"github.com/stackpulse/stackpulse/internal/metricstore"
)

// HealthChecker runs and records one probe cycle for a deployment
type HealthChecker interface {
	RunHealthChecks(ctx context.Context, id interfaces.DeploymentID) ([]interfaces.HealthCheckResult, error)
}

// ProbeExecutor runs probe cycles and turns their results into metric samples.
// Every probe yields an uptime sample and every healthy probe also a
// response_time sample.
type ProbeExecutor struct {
	checker HealthChecker
	store   interfaces.MetricStore
	metrics *metrics.Collector
	logger  *logging.Logger
}

// NewProbeExecutor creates an executor. collector may be nil.
func NewProbeExecutor(checker HealthChecker, store interfaces.MetricStore, collector *metrics.Collector) *ProbeExecutor {
	return &ProbeExecutor{
		checker: checker,
		store:   store,
		metrics: collector,
		logger:  logging.NewLogger("ProbeExecutor"),
	}
}

// RunProbeCycle implements interfaces.ProbeRunner. A deployment deleted
// while its cycle was queued is not an error.
func (e *ProbeExecutor) RunProbeCycle(ctx context.Context, id interfaces.DeploymentID) error {
	results, err := e.checker.RunHealthChecks(ctx, id)
	if err != nil {
		if errors.Is(err, deployment.ErrDeploymentNotFound) {
			e.logger.Debugf("Skipping probe cycle for removed deployment %s", id)
			return nil
		}
		return fmt.Errorf("probe cycle for %s: %w", id, err)
	}

	for _, r := range results {
		for _, sample := range samplesFor(id, r) {
			if err := e.store.Record(ctx, sample); err != nil {
				if errors.Is(err, metricstore.ErrDeploymentDeleted) {
					return nil
				}
				return fmt.Errorf("failed to record %s sample for %s: %w", sample.Type, id, err)
			}
			if e.metrics != nil {
				e.metrics.RecordSample(sample.Type)
			}
		}
	}
	return nil
}

func samplesFor(id interfaces.DeploymentID, r interfaces.HealthCheckResult) []*interfaces.MetricSample {
	service := interfaces.MetricService(r.Service)
	samples := []*interfaces.MetricSample{{
		DeploymentID: id,
		Type:         interfaces.MetricUptime,
		Value:        r.Uptime,
		Unit:         interfaces.UnitPercent,
		Timestamp:    r.LastCheck,
		Service:      service,
	}}
	if r.Status == interfaces.HealthStatusHealthy {
		samples = append(samples, &interfaces.MetricSample{
			DeploymentID: id,
			Type:         interfaces.MetricResponseTime,
			Value:        float64(r.ResponseTimeMillis),
			Unit:         interfaces.UnitMilliseconds,
			Timestamp:    r.LastCheck,
			Service:      service,
		})
	}
	return samples
}
