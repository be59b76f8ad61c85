// Package metricstore stores time-series metric samples per deployment with
// bounded retention and windowed range queries.
package metricstore

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// Retention is how long samples are kept before they become eligible for expiry
const Retention = 30 * 24 * time.Hour

// Validation and lifecycle errors
var (
	ErrInvalidMetric     = errors.New("invalid metric")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrInvalidService    = errors.New("invalid metric service")
	ErrInvalidGroupBy    = errors.New("invalid group by")
	ErrDeploymentDeleted = errors.New("deployment metrics have been deleted")
)

// prepareSample validates the sample and fills defaults: a fresh id, the
// current time when no timestamp is given and the overall service.
func prepareSample(s *interfaces.MetricSample, now time.Time) error {
	if s == nil {
		return fmt.Errorf("%w: sample is required", ErrInvalidMetric)
	}
	if s.DeploymentID == "" {
		return fmt.Errorf("%w: deployment id is required", ErrInvalidMetric)
	}
	if !s.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMetric, s.Type)
	}
	if !s.Unit.Valid() {
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidMetric, s.Unit)
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return fmt.Errorf("%w: value must be a finite number", ErrInvalidMetric)
	}
	if s.Service == "" {
		s.Service = interfaces.MetricServiceOverall
	}
	if !s.Service.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidService, s.Service)
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = now
	}
	if s.ID == "" {
		id, err := uuid.GenerateUUID()
		if err != nil {
			return fmt.Errorf("failed to generate sample id: %w", err)
		}
		s.ID = id
	}
	return nil
}

// queryCutoff validates the query and returns the oldest timestamp it includes
func queryCutoff(q interfaces.MetricQuery, now time.Time) (time.Time, error) {
	window, ok := q.TimeRange.Window()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeRange, q.TimeRange)
	}
	if q.Type != "" && !q.Type.Valid() {
		return time.Time{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMetric, q.Type)
	}
	if q.Service != "" && !q.Service.Valid() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidService, q.Service)
	}
	return now.Add(-window), nil
}

func matches(q interfaces.MetricQuery, s *interfaces.MetricSample) bool {
	if q.Type != "" && s.Type != q.Type {
		return false
	}
	if q.Service != "" && s.Service != q.Service {
		return false
	}
	return true
}

func cloneSample(s interfaces.MetricSample) interfaces.MetricSample {
	if s.Metadata != nil {
		md := make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			md[k] = v
		}
		s.Metadata = md
	}
	return s
}
