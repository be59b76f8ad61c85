package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stackpulse/stackpulse/internal/deployment"
	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/logging"
)

// DeploymentService is the deployment registry used by the handler
type DeploymentService interface {
	Create(ctx context.Context, req deployment.CreateRequest) (*interfaces.Deployment, error)
	Get(ctx context.Context, id interfaces.DeploymentID) (*interfaces.Deployment, error)
	Update(ctx context.Context, id interfaces.DeploymentID, req deployment.UpdateRequest) (*interfaces.Deployment, error)
	List(ctx context.Context, filter interfaces.DeploymentFilter) ([]*interfaces.Deployment, error)
	UpdateServiceStatus(
		ctx context.Context,
		id interfaces.DeploymentID,
		service interfaces.ServiceName,
		status interfaces.ServiceStatus,
		extra map[string]interface{},
	) (*interfaces.Deployment, error)
	AppendLog(ctx context.Context, id interfaces.DeploymentID, entry interfaces.LogEntry) (*interfaces.LogEntry, error)
	Logs(ctx context.Context, id interfaces.DeploymentID, limit int) ([]interfaces.LogEntry, error)
	RunHealthChecks(ctx context.Context, id interfaces.DeploymentID) ([]interfaces.HealthCheckResult, error)
	Cancel(ctx context.Context, id interfaces.DeploymentID, reason string) (*interfaces.Deployment, error)
	Delete(ctx context.Context, id interfaces.DeploymentID) error
}

// DeploymentResponse is a deployment plus its computed fields
type DeploymentResponse struct {
	*interfaces.Deployment
	HealthPercentage     int    `json:"health_percentage"`
	DeploymentDurationMs *int64 `json:"deployment_duration_ms,omitempty"`
}

// CancelRequest is the optional body of a cancel request
type CancelRequest struct {
	Reason string `json:"reason"`
}

// DeploymentHandler handles deployment-related HTTP requests
type DeploymentHandler struct {
	service DeploymentService
	now     func() time.Time
	logger  *logging.Logger
}

// NewDeploymentHandler creates a new deployment handler
func NewDeploymentHandler(service DeploymentService) (*DeploymentHandler, error) {
	if service == nil {
		return nil, errors.New("deployment service is required")
	}
	return &DeploymentHandler{
		service: service,
		now:     time.Now,
		logger:  logging.NewLogger("deployment-handler"),
	}, nil
}

// RegisterRoutes mounts the deployment endpoints on r. createValidator runs
// before CreateDeployment only.
func (h *DeploymentHandler) RegisterRoutes(r chi.Router, idValidator, createValidator func(http.Handler) http.Handler) {
	r.Route("/deployments", func(r chi.Router) {
		r.With(createValidator).Post("/", h.CreateDeployment)
		r.Get("/", h.ListDeployments)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(idValidator)

			r.Get("/", h.GetDeployment)
			r.Put("/", h.UpdateDeployment)
			r.Delete("/", h.DeleteDeployment)
			r.Put("/services/{service}", h.UpdateService)
			r.Post("/logs", h.AppendLog)
			r.Get("/logs", h.GetLogs)
			r.Post("/health-checks", h.RunHealthChecks)
			r.Post("/cancel", h.CancelDeployment)
		})
	})
}

// respond adds the computed fields and masks secret configuration values.
// d must be a copy owned by the caller.
func (h *DeploymentHandler) respond(d *interfaces.Deployment) DeploymentResponse {
	d.Config = deployment.MaskConfiguration(d.Config)
	resp := DeploymentResponse{
		Deployment:       d,
		HealthPercentage: deployment.HealthPercentage(d),
	}
	if dur, ok := deployment.DeploymentDuration(d, h.now()); ok {
		ms := dur.Milliseconds()
		resp.DeploymentDurationMs = &ms
	}
	return resp
}

// CreateDeployment registers a new deployment
// @Summary Create deployment
// @Tags deployments
// @Accept json
// @Produce json
// @Success 201 {object} DeploymentResponse
// @Failure 400 {object} ErrorResponse
// @Router /deployments [post]
func (h *DeploymentHandler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req deployment.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body")
		return
	}

	d, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, h.respond(d))
}

// ListDeployments lists deployments, filtered by owner_id, status, environment and active
// @Summary List deployments
// @Tags deployments
// @Produce json
// @Success 200 {array} DeploymentResponse
// @Router /deployments [get]
func (h *DeploymentHandler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := interfaces.DeploymentFilter{
		OwnerID:     q.Get("owner_id"),
		Status:      interfaces.DeploymentStatus(q.Get("status")),
		Environment: interfaces.Environment(q.Get("environment")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_status", "unknown status filter")
		return
	}
	if filter.Environment != "" && !filter.Environment.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_environment", "unknown environment filter")
		return
	}
	if active := q.Get("active"); active != "" {
		b, err := strconv.ParseBool(active)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_active", "active must be a boolean")
			return
		}
		filter.ActiveOnly = b
	}

	deployments, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "list_failed")
		return
	}

	resp := make([]DeploymentResponse, 0, len(deployments))
	for _, d := range deployments {
		resp = append(resp, h.respond(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDeployment returns one deployment
// @Summary Get deployment
// @Tags deployments
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 200 {object} DeploymentResponse
// @Failure 404 {object} ErrorResponse
// @Router /deployments/{id} [get]
func (h *DeploymentHandler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context(), deploymentID(r))
	if err != nil {
		writeServiceError(w, err, "get_failed")
		return
	}
	writeJSON(w, http.StatusOK, h.respond(d))
}

// UpdateDeployment changes name, description, environment or configuration
// @Summary Update deployment
// @Tags deployments
// @Accept json
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 200 {object} DeploymentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /deployments/{id} [put]
func (h *DeploymentHandler) UpdateDeployment(w http.ResponseWriter, r *http.Request) {
	var req deployment.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body")
		return
	}

	d, err := h.service.Update(r.Context(), deploymentID(r), req)
	if err != nil {
		writeServiceError(w, err, "update_failed")
		return
	}
	writeJSON(w, http.StatusOK, h.respond(d))
}

// UpdateService sets the status of one service. Fields other than status
// are merged into the service state. The transition is recorded in the
// deployment log.
// @Summary Update service status
// @Tags deployments
// @Accept json
// @Produce json
// @Param id path string true "Deployment ID"
// @Param service path string true "frontend, backend or database"
// @Success 200 {object} DeploymentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /deployments/{id}/services/{service} [put]
func (h *DeploymentHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body")
		return
	}
	status, _ := body["status"].(string)
	if status == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "status is required")
		return
	}
	delete(body, "status")

	id := deploymentID(r)
	service := interfaces.ServiceName(chi.URLParam(r, "service"))
	before, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "update_failed")
		return
	}

	d, err := h.service.UpdateServiceStatus(r.Context(), id, service, interfaces.ServiceStatus(status), body)
	if err != nil {
		writeServiceError(w, err, "update_failed")
		return
	}

	if entry := transitionEntry(service, before, d); entry != nil {
		if _, err := h.service.AppendLog(r.Context(), id, *entry); err != nil {
			h.logger.Warnf("Failed to log %s transition for deployment %s: %v", service, id, err)
		} else if refreshed, err := h.service.Get(r.Context(), id); err == nil {
			d = refreshed
		}
	}
	writeJSON(w, http.StatusOK, h.respond(d))
}

// transitionEntry builds the log entry for a service update. A failed
// service is logged at error level.
func transitionEntry(service interfaces.ServiceName, before, after *interfaces.Deployment) *interfaces.LogEntry {
	prev := before.Services.Get(service)
	next := after.Services.Get(service)
	if prev == nil || next == nil {
		return nil
	}
	level := interfaces.LogLevelInfo
	if next.Status == interfaces.ServiceStatusFailed {
		level = interfaces.LogLevelError
	}
	metadata := map[string]interface{}{
		interfaces.MetadataKeyPreviousStatus: string(prev.Status),
		interfaces.MetadataKeyNewStatus:      string(next.Status),
		interfaces.MetadataKeyOverallStatus:  string(after.Status),
	}
	if next.URL != "" {
		metadata[interfaces.MetadataKeyURL] = next.URL
	}
	return &interfaces.LogEntry{
		Level:    level,
		Message:  fmt.Sprintf("%s status changed to %s", service, next.Status),
		Service:  service,
		Metadata: metadata,
	}
}

// AppendLog adds an entry to the deployment log
// @Summary Append log entry
// @Tags deployments
// @Accept json
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 201 {object} interfaces.LogEntry
// @Router /deployments/{id}/logs [post]
func (h *DeploymentHandler) AppendLog(w http.ResponseWriter, r *http.Request) {
	var entry interfaces.LogEntry
	if err := decodeJSON(r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body")
		return
	}
	if entry.Message == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "message is required")
		return
	}

	saved, err := h.service.AppendLog(r.Context(), deploymentID(r), entry)
	if err != nil {
		writeServiceError(w, err, "append_log_failed")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// GetLogs returns the newest log entries in chronological order
// @Summary Get logs
// @Tags deployments
// @Produce json
// @Param id path string true "Deployment ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {array} interfaces.LogEntry
// @Router /deployments/{id}/logs [get]
func (h *DeploymentHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	logs, err := h.service.Logs(r.Context(), deploymentID(r), limit)
	if err != nil {
		writeServiceError(w, err, "get_logs_failed")
		return
	}
	if logs == nil {
		logs = []interfaces.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// RunHealthChecks probes the deployment now and returns the results
// @Summary Run health checks
// @Tags deployments
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 200 {array} interfaces.HealthCheckResult
// @Router /deployments/{id}/health-checks [post]
func (h *DeploymentHandler) RunHealthChecks(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.RunHealthChecks(r.Context(), deploymentID(r))
	if err != nil {
		writeServiceError(w, err, "health_check_failed")
		return
	}
	if results == nil {
		results = []interfaces.HealthCheckResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// CancelDeployment moves the deployment into the cancelled state
// @Summary Cancel deployment
// @Tags deployments
// @Accept json
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 200 {object} DeploymentResponse
// @Router /deployments/{id}/cancel [post]
func (h *DeploymentHandler) CancelDeployment(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body")
			return
		}
	}

	d, err := h.service.Cancel(r.Context(), deploymentID(r), req.Reason)
	if err != nil {
		writeServiceError(w, err, "cancel_failed")
		return
	}
	writeJSON(w, http.StatusOK, h.respond(d))
}

// DeleteDeployment removes the deployment and its metrics
// @Summary Delete deployment
// @Tags deployments
// @Param id path string true "Deployment ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /deployments/{id} [delete]
func (h *DeploymentHandler) DeleteDeployment(w http.ResponseWriter, r *http.Request) {
	id := deploymentID(r)
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete_failed")
		return
	}
	h.logger.Infof("Deleted deployment %s", id)
	w.WriteHeader(http.StatusNoContent)
}

func deploymentID(r *http.Request) interfaces.DeploymentID {
	return interfaces.DeploymentID(chi.URLParam(r, "id"))
}
