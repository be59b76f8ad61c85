package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// defaultTimeRange is used when a metrics request names no timeRange
const defaultTimeRange = interfaces.TimeRangeDay

// DeploymentLookup resolves a deployment before metrics are accepted for it
type DeploymentLookup interface {
	Get(ctx context.Context, id interfaces.DeploymentID) (*interfaces.Deployment, error)
}

// Aggregator buckets metric samples
type Aggregator interface {
	Aggregate(
		ctx context.Context,
		id interfaces.DeploymentID,
		timeRange interfaces.TimeRange,
		groupBy interfaces.GroupBy,
	) ([]interfaces.MetricAggregate, error)
	Summarize(ctx context.Context, id interfaces.DeploymentID, timeRange interfaces.TimeRange) ([]interfaces.MetricAggregate, error)
}

// TrendCalculator derives trends from metric samples
type TrendCalculator interface {
	CalculateTrend(
		ctx context.Context,
		id interfaces.DeploymentID,
		typ interfaces.MetricType,
		timeRange interfaces.TimeRange,
	) (interfaces.Trend, error)
	CalculateTrends(ctx context.Context, id interfaces.DeploymentID, timeRange interfaces.TimeRange) ([]interfaces.Trend, error)
}

// SampleRecorder counts accepted samples
type SampleRecorder interface {
	RecordSample(metricType interfaces.MetricType)
}

// MetricsHandlerConfig wires the metrics handler
type MetricsHandlerConfig struct {
	Deployments DeploymentLookup
	Store       interfaces.MetricStore
	Aggregator  Aggregator
	Trends      TrendCalculator
	Recorder    SampleRecorder // optional
}

// MetricsHandler handles metric ingestion and analytics requests
type MetricsHandler struct {
	deployments DeploymentLookup
	store       interfaces.MetricStore
	aggregator  Aggregator
	trends      TrendCalculator
	recorder    SampleRecorder
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(cfg MetricsHandlerConfig) (*MetricsHandler, error) {
	if cfg.Deployments == nil || cfg.Store == nil {
		return nil, errors.New("deployment lookup and metric store are required")
	}
	if cfg.Aggregator == nil || cfg.Trends == nil {
		return nil, errors.New("aggregator and trend calculator are required")
	}
	return &MetricsHandler{
		deployments: cfg.Deployments,
		store:       cfg.Store,
		aggregator:  cfg.Aggregator,
		trends:      cfg.Trends,
		recorder:    cfg.Recorder,
	}, nil
}

// RegisterRoutes mounts the metrics endpoints on r
func (h *MetricsHandler) RegisterRoutes(r chi.Router, idValidator func(http.Handler) http.Handler) {
	r.Route("/metrics/{id}", func(r chi.Router) {
		r.Use(idValidator)

		r.Post("/", h.RecordMetric)
		r.Get("/", h.QueryMetrics)
		r.Get("/aggregated", h.AggregateMetrics)
		r.Get("/summary", h.SummarizeMetrics)
		r.Get("/trends", h.GetTrends)
	})
}

// RecordMetric stores one sample for a deployment
// @Summary Record metric sample
// @Tags metrics
// @Accept json
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 201 {object} interfaces.MetricSample
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /metrics/{id} [post]
func (h *MetricsHandler) RecordMetric(w http.ResponseWriter, r *http.Request) {
	id := deploymentID(r)
	var sample interfaces.MetricSample
	if err := decodeJSON(r, &sample); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body")
		return
	}
	if sample.DeploymentID != "" && sample.DeploymentID != id {
		writeError(w, http.StatusBadRequest, "validation_failed", "deployment_id does not match the path")
		return
	}
	sample.DeploymentID = id

	if !h.resolve(w, r, id) {
		return
	}
	if err := h.store.Record(r.Context(), &sample); err != nil {
		writeServiceError(w, err, "record_failed")
		return
	}
	if h.recorder != nil {
		h.recorder.RecordSample(sample.Type)
	}
	writeJSON(w, http.StatusCreated, sample)
}

// QueryMetrics returns raw samples, newest first
// @Summary Query metric samples
// @Tags metrics
// @Produce json
// @Param id path string true "Deployment ID"
// @Param type query string false "Metric type"
// @Param service query string false "Service"
// @Param timeRange query string false "1h, 24h, 7d or 30d"
// @Success 200 {array} interfaces.MetricSample
// @Failure 404 {object} ErrorResponse
// @Router /metrics/{id} [get]
func (h *MetricsHandler) QueryMetrics(w http.ResponseWriter, r *http.Request) {
	id := deploymentID(r)
	if !h.resolve(w, r, id) {
		return
	}
	q := r.URL.Query()
	samples, err := h.store.Query(r.Context(), interfaces.MetricQuery{
		DeploymentID: id,
		Type:         interfaces.MetricType(q.Get("type")),
		Service:      interfaces.MetricService(q.Get("service")),
		TimeRange:    timeRange(r),
	})
	if err != nil {
		writeServiceError(w, err, "query_failed")
		return
	}
	if samples == nil {
		samples = []interfaces.MetricSample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

// AggregateMetrics returns bucketed summaries
// @Summary Aggregate metrics
// @Tags metrics
// @Produce json
// @Param id path string true "Deployment ID"
// @Param timeRange query string false "1h, 24h, 7d or 30d"
// @Param groupBy query string false "hour, day or week"
// @Success 200 {array} interfaces.MetricAggregate
// @Failure 404 {object} ErrorResponse
// @Router /metrics/{id}/aggregated [get]
func (h *MetricsHandler) AggregateMetrics(w http.ResponseWriter, r *http.Request) {
	id := deploymentID(r)
	if !h.resolve(w, r, id) {
		return
	}
	groupBy := interfaces.GroupBy(r.URL.Query().Get("groupBy"))
	if groupBy == "" {
		groupBy = interfaces.GroupByHour
	}

	aggregates, err := h.aggregator.Aggregate(r.Context(), id, timeRange(r), groupBy)
	if err != nil {
		writeServiceError(w, err, "aggregate_failed")
		return
	}
	if aggregates == nil {
		aggregates = []interfaces.MetricAggregate{}
	}
	writeJSON(w, http.StatusOK, aggregates)
}

// SummarizeMetrics returns one summary per type and service over the window
// @Summary Summarize metrics
// @Tags metrics
// @Produce json
// @Param id path string true "Deployment ID"
// @Param timeRange query string false "1h, 24h, 7d or 30d"
// @Success 200 {array} interfaces.MetricAggregate
// @Failure 404 {object} ErrorResponse
// @Router /metrics/{id}/summary [get]
func (h *MetricsHandler) SummarizeMetrics(w http.ResponseWriter, r *http.Request) {
	id := deploymentID(r)
	if !h.resolve(w, r, id) {
		return
	}
	summary, err := h.aggregator.Summarize(r.Context(), id, timeRange(r))
	if err != nil {
		writeServiceError(w, err, "summarize_failed")
		return
	}
	if summary == nil {
		summary = []interfaces.MetricAggregate{}
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetTrends returns the trend for one type, or for every type with samples
// @Summary Metric trends
// @Tags metrics
// @Produce json
// @Param id path string true "Deployment ID"
// @Param type query string false "Metric type"
// @Param timeRange query string false "1h, 24h, 7d or 30d"
// @Success 200 {array} interfaces.Trend
// @Failure 404 {object} ErrorResponse
// @Router /metrics/{id}/trends [get]
func (h *MetricsHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	id := deploymentID(r)
	if !h.resolve(w, r, id) {
		return
	}
	if typ := r.URL.Query().Get("type"); typ != "" {
		trend, err := h.trends.CalculateTrend(r.Context(), id, interfaces.MetricType(typ), timeRange(r))
		if err != nil {
			writeServiceError(w, err, "trend_failed")
			return
		}
		writeJSON(w, http.StatusOK, trend)
		return
	}

	trends, err := h.trends.CalculateTrends(r.Context(), id, timeRange(r))
	if err != nil {
		writeServiceError(w, err, "trend_failed")
		return
	}
	if trends == nil {
		trends = []interfaces.Trend{}
	}
	writeJSON(w, http.StatusOK, trends)
}

// resolve writes the lookup error and returns false when the deployment does not exist
func (h *MetricsHandler) resolve(w http.ResponseWriter, r *http.Request, id interfaces.DeploymentID) bool {
	if _, err := h.deployments.Get(r.Context(), id); err != nil {
		writeServiceError(w, err, "lookup_failed")
		return false
	}
	return true
}

func timeRange(r *http.Request) interfaces.TimeRange {
	if tr := r.URL.Query().Get("timeRange"); tr != "" {
		return interfaces.TimeRange(tr)
	}
	return defaultTimeRange
}
