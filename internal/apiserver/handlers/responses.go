// Package handlers provides HTTP request handlers for the API server.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stackpulse/stackpulse/internal/deployment"
	"github.com/stackpulse/stackpulse/internal/lockout"
	"github.com/stackpulse/stackpulse/internal/logging"
	"github.com/stackpulse/stackpulse/internal/metricstore"
)

// Package-level logger for global functions
var logger = logging.NewLogger("handlers")

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON safely writes JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding_error", "Failed to encode response")
		logger.Errorf("JSON encoding error: %v, data: %+v", err, data)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(jsonData); err != nil {
		logger.Errorf("Failed to write response body: %v", err)
	}
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code string, message string) {
	response := ErrorResponse{
		Error:   code,
		Message: message,
	}

	jsonData, err := json.Marshal(response)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error: failed to encode error response"))
		logger.Errorf("Failed to encode error response: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(jsonData); err != nil {
		logger.Errorf("Failed to write error response: %v", err)
	}
}

// writeServiceError maps domain errors onto HTTP responses
func writeServiceError(w http.ResponseWriter, err error, fallbackCode string) {
	if depErr, ok := deployment.IsDeploymentError(err); ok {
		writeError(w, depErr.HTTPStatus, depErr.Code, err.Error())
		return
	}

	switch {
	case errors.Is(err, metricstore.ErrInvalidMetric):
		writeError(w, http.StatusBadRequest, "INVALID_METRIC", err.Error())
	case errors.Is(err, metricstore.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, "INVALID_TIME_RANGE", err.Error())
	case errors.Is(err, metricstore.ErrInvalidService):
		writeError(w, http.StatusBadRequest, "INVALID_SERVICE", err.Error())
	case errors.Is(err, metricstore.ErrInvalidGroupBy):
		writeError(w, http.StatusBadRequest, "INVALID_GROUP_BY", err.Error())
	case errors.Is(err, metricstore.ErrDeploymentDeleted):
		writeError(w, http.StatusGone, "DEPLOYMENT_DELETED", err.Error())
	case errors.Is(err, lockout.ErrLocked):
		writeError(w, http.StatusLocked, "ACCOUNT_LOCKED", err.Error())
	default:
		logger.Errorf("%s: %v", fallbackCode, err)
		writeError(w, http.StatusInternalServerError, fallbackCode, "internal error")
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
