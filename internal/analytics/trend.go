package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/metricstore"
)

// TrendThreshold is the absolute percentage change above which a trend is up or down
const TrendThreshold = 5.0

// TrendCalculator classifies recent change of a metric type
type TrendCalculator struct {
	store interfaces.MetricStore
}

// NewTrendCalculator creates a calculator reading from store
func NewTrendCalculator(store interfaces.MetricStore) *TrendCalculator {
	return &TrendCalculator{store: store}
}

// CalculateTrend compares the newest sample of typ in the window against the
// sample at index n/2 of the newest-first ordering.
func (c *TrendCalculator) CalculateTrend(
	ctx context.Context,
	id interfaces.DeploymentID,
	typ interfaces.MetricType,
	timeRange interfaces.TimeRange,
) (interfaces.Trend, error) {
	if !typ.Valid() {
		return interfaces.Trend{}, fmt.Errorf("%w: unknown type %q", metricstore.ErrInvalidMetric, typ)
	}
	samples, err := c.store.Query(ctx, interfaces.MetricQuery{DeploymentID: id, Type: typ, TimeRange: timeRange})
	if err != nil {
		return interfaces.Trend{}, err
	}
	direction, change := ComputeTrend(samples)
	return interfaces.Trend{Type: typ, Trend: direction, Change: change}, nil
}

// CalculateTrends returns a trend for every metric type that has samples in the window
func (c *TrendCalculator) CalculateTrends(
	ctx context.Context,
	id interfaces.DeploymentID,
	timeRange interfaces.TimeRange,
) ([]interfaces.Trend, error) {
	samples, err := c.store.Query(ctx, interfaces.MetricQuery{DeploymentID: id, TimeRange: timeRange})
	if err != nil {
		return nil, err
	}

	byType := make(map[interfaces.MetricType][]interfaces.MetricSample)
	var order []interfaces.MetricType
	for _, s := range samples {
		if _, seen := byType[s.Type]; !seen {
			order = append(order, s.Type)
		}
		byType[s.Type] = append(byType[s.Type], s)
	}

	trends := make([]interfaces.Trend, 0, len(order))
	for _, typ := range order {
		direction, change := ComputeTrend(byType[typ])
		trends = append(trends, interfaces.Trend{Type: typ, Trend: direction, Change: change})
	}
	return trends, nil
}

// ComputeTrend derives direction and percentage change from newest-first
// samples. Fewer than two samples, or a zero reference value, is stable with
// zero change. Change is rounded to two decimals; the threshold applies to
// the unrounded value.
func ComputeTrend(newestFirst []interfaces.MetricSample) (interfaces.TrendDirection, float64) {
	n := len(newestFirst)
	if n < 2 {
		return interfaces.TrendStable, 0
	}

	latest := newestFirst[0].Value
	reference := newestFirst[n/2].Value
	if reference == 0 {
		return interfaces.TrendStable, 0
	}

	change := (latest - reference) / reference * 100
	rounded := roundHalfUp(change, 2)

	switch {
	case math.Abs(change) <= TrendThreshold:
		return interfaces.TrendStable, rounded
	case change > 0:
		return interfaces.TrendUp, rounded
	default:
		return interfaces.TrendDown, rounded
	}
}

// roundHalfUp rounds to the given decimals with ties toward positive infinity
func roundHalfUp(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Floor(v*p+0.5) / p
}
