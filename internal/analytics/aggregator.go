// Package analytics derives windowed summaries and trends from stored metric samples.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/metricstore"
)

// Aggregator computes bucketed statistics over a deployment's samples
type Aggregator struct {
	store interfaces.MetricStore
}

// NewAggregator creates an aggregator reading from store
func NewAggregator(store interfaces.MetricStore) *Aggregator {
	return &Aggregator{store: store}
}

type bucketKey struct {
	interval string
	typ      interfaces.MetricType
	service  interfaces.MetricService
}

type rollup struct {
	sum    float64
	min    float64
	max    float64
	count  int
	latest float64
}

// Aggregate buckets the samples inside timeRange by groupBy and returns one
// summary per (interval, type, service), sorted ascending by interval.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	id interfaces.DeploymentID,
	timeRange interfaces.TimeRange,
	groupBy interfaces.GroupBy,
) ([]interfaces.MetricAggregate, error) {
	if !groupBy.Valid() {
		return nil, fmt.Errorf("%w: %q", metricstore.ErrInvalidGroupBy, groupBy)
	}
	samples, err := a.store.Query(ctx, interfaces.MetricQuery{DeploymentID: id, TimeRange: timeRange})
	if err != nil {
		return nil, err
	}
	return AggregateSamples(samples, groupBy), nil
}

// Summarize returns one summary per (type, service) over the whole window
func (a *Aggregator) Summarize(
	ctx context.Context,
	id interfaces.DeploymentID,
	timeRange interfaces.TimeRange,
) ([]interfaces.MetricAggregate, error) {
	samples, err := a.store.Query(ctx, interfaces.MetricQuery{DeploymentID: id, TimeRange: timeRange})
	if err != nil {
		return nil, err
	}
	return aggregate(samples, func(time.Time) string { return "" }), nil
}

// AggregateSamples groups newest-first samples into buckets. Within a bucket
// latest is the value of the chronologically last sample.
func AggregateSamples(samples []interfaces.MetricSample, groupBy interfaces.GroupBy) []interfaces.MetricAggregate {
	return aggregate(samples, func(ts time.Time) string { return BucketKey(ts, groupBy) })
}

func aggregate(samples []interfaces.MetricSample, keyOf func(time.Time) string) []interfaces.MetricAggregate {
	rollups := make(map[bucketKey]*rollup)

	// Walk oldest to newest so the last write to latest wins
	for i := len(samples) - 1; i >= 0; i-- {
		s := samples[i]
		key := bucketKey{interval: keyOf(s.Timestamp), typ: s.Type, service: s.Service}
		r, ok := rollups[key]
		if !ok {
			r = &rollup{min: s.Value, max: s.Value}
			rollups[key] = r
		}
		r.sum += s.Value
		r.count++
		if s.Value < r.min {
			r.min = s.Value
		}
		if s.Value > r.max {
			r.max = s.Value
		}
		r.latest = s.Value
	}

	result := make([]interfaces.MetricAggregate, 0, len(rollups))
	for key, r := range rollups {
		result = append(result, interfaces.MetricAggregate{
			Interval: key.interval,
			Type:     key.typ,
			Service:  key.service,
			Avg:      r.sum / float64(r.count),
			Min:      r.min,
			Max:      r.max,
			Count:    r.count,
			Latest:   r.latest,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Interval != result[j].Interval {
			return result[i].Interval < result[j].Interval
		}
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		return result[i].Service < result[j].Service
	})
	return result
}

// BucketKey formats the UTC bucket label for a timestamp:
// hour "2006-01-02 15:00", day "2006-01-02", week "2006-W05" where weeks
// start on Sunday and days before the first Sunday fall in week 00.
func BucketKey(ts time.Time, groupBy interfaces.GroupBy) string {
	ts = ts.UTC()
	switch groupBy {
	case interfaces.GroupByHour:
		return ts.Format("2006-01-02 15:00")
	case interfaces.GroupByWeek:
		yday := ts.YearDay() - 1
		week := (yday + 7 - int(ts.Weekday())) / 7
		return fmt.Sprintf("%04d-W%02d", ts.Year(), week)
	default:
		return ts.Format("2006-01-02")
	}
}
