// Package deployment owns the deployment aggregate: per-service status,
// overall status derivation, the bounded audit log and health check results.
package deployment

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a structured deployment error with context
type Error struct {
	Code       string // Machine-readable error code
	Message    string // Human-readable message
	HTTPStatus int    // Suggested HTTP status code
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common deployment errors
var (
	// Validation errors
	ErrUnknownService = &Error{
		Code:       "UNKNOWN_SERVICE",
		Message:    "service must be one of frontend, backend, database",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidServiceStatus = &Error{
		Code:       "INVALID_SERVICE_STATUS",
		Message:    "status is not valid for this service",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidServiceFields = &Error{
		Code:       "INVALID_SERVICE_FIELDS",
		Message:    "extra service fields could not be applied",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidRequest = &Error{
		Code:       "INVALID_REQUEST",
		Message:    "invalid deployment request",
		HTTPStatus: http.StatusBadRequest,
	}

	// Lifecycle errors
	ErrDeploymentCancelled = &Error{
		Code:       "DEPLOYMENT_CANCELLED",
		Message:    "cannot update a cancelled deployment",
		HTTPStatus: http.StatusConflict,
	}

	// General errors
	ErrDeploymentNotFound = &Error{
		Code:       "DEPLOYMENT_NOT_FOUND",
		Message:    "deployment not found",
		HTTPStatus: http.StatusNotFound,
	}
)

// IsDeploymentError checks if an error is a deployment.Error
func IsDeploymentError(err error) (*Error, bool) {
	var depErr *Error
	if errors.As(err, &depErr) {
		return depErr, true
	}
	return nil, false
}
