// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (1MB)
	MaxRequestBodySize = 1024 * 1024
)

// ValidationError represents a validation error response
type ValidationError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// IDValidator creates a middleware that validates deployment IDs in URL parameters
func IDValidator(paramName string) func(http.Handler) http.Handler {
	// Valid ID pattern: alphanumeric and hyphens, 1-100 characters
	validIDPattern := regexp.MustCompile(`^[a-zA-Z0-9-]{1,100}$`)
	return paramValidator(paramName, validIDPattern)
}

// PrincipalValidator validates the principal a lockout request is about.
// Principals are usually email addresses or user names.
func PrincipalValidator(paramName string) func(http.Handler) http.Handler {
	validPrincipalPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+@-]{1,254}$`)
	return paramValidator(paramName, validPrincipalPattern)
}

func paramValidator(paramName string, pattern *regexp.Regexp) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value := chi.URLParam(r, paramName)

			if value == "" {
				writeValidationError(w, fmt.Sprintf("%s is required", paramName), paramName)
				return
			}

			if !pattern.MatchString(value) {
				writeValidationError(w, fmt.Sprintf("%s contains invalid characters or is too long", paramName), paramName)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DeploymentBodyValidator checks the name, environment and service URLs of a
// deployment creation request before it reaches the handler
func DeploymentBodyValidator() func(http.Handler) http.Handler {
	// Printable characters only, 1-100 of them
	validNamePattern := regexp.MustCompile(`^[^\x00-\x1f\x7f]{1,100}$`)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip validation for non-modifying requests
			if !isModifyingRequest(r) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := parseAndRestoreBody(r)
			if err != nil {
				writeValidationError(w, err.Error(), "body")
				return
			}

			if err := validateNameField(body, validNamePattern); err != nil {
				writeValidationError(w, err.Error(), "name")
				return
			}
			if err := validateEnvironmentField(body); err != nil {
				writeValidationError(w, err.Error(), "environment")
				return
			}
			if err := validateServiceURLs(body); err != nil {
				writeValidationError(w, err.Error(), "service_urls")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isModifyingRequest checks if the request method modifies data
func isModifyingRequest(r *http.Request) bool {
	return r.Method == http.MethodPost || r.Method == http.MethodPut
}

// parseAndRestoreBody reads, parses, and restores the request body with size limit
func parseAndRestoreBody(r *http.Request) (map[string]interface{}, error) {
	limitedReader := io.LimitReader(r.Body, MaxRequestBodySize)
	bodyBytes, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body")
	}

	// Check if we hit the limit by trying to read one more byte
	if n, _ := io.Copy(io.Discard, r.Body); n > 0 {
		return nil, fmt.Errorf("request body too large (max %d bytes)", MaxRequestBodySize)
	}

	_ = r.Body.Close()

	var body map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return nil, fmt.Errorf("invalid JSON in request body")
	}

	// Restore the body for the next handler
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	return body, nil
}

// validateNameField checks if the name field is valid
func validateNameField(body map[string]interface{}, pattern *regexp.Regexp) error {
	raw, present := body["name"]
	if !present {
		return fmt.Errorf("name is required")
	}
	name, ok := raw.(string)
	if !ok {
		return fmt.Errorf("name must be a string")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !pattern.MatchString(name) {
		return fmt.Errorf("name contains invalid characters or is too long")
	}
	return nil
}

func validateEnvironmentField(body map[string]interface{}) error {
	raw, present := body["environment"]
	if !present {
		return nil
	}
	env, ok := raw.(string)
	if !ok {
		return fmt.Errorf("environment must be a string")
	}
	if env != "" && !interfaces.Environment(env).Valid() {
		return fmt.Errorf("environment must be one of development, staging, production")
	}
	return nil
}

// validateServiceURLs requires known service names mapped to absolute http(s) URLs
func validateServiceURLs(body map[string]interface{}) error {
	raw, present := body["service_urls"]
	if !present || raw == nil {
		return nil
	}
	urls, ok := raw.(map[string]interface{})
	if !ok {
		return fmt.Errorf("service_urls must be an object")
	}

	for name, v := range urls {
		if !interfaces.ServiceName(name).Valid() {
			return fmt.Errorf("unknown service %q", name)
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("URL for %s must be a string", name)
		}
		if s == "" {
			continue
		}
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("URL for %s must be an absolute http or https URL", name)
		}
	}
	return nil
}

// ContentTypeValidator ensures requests have proper content type
func ContentTypeValidator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only validate on requests with body
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				if r.ContentLength > 0 || r.Header.Get("Transfer-Encoding") != "" {
					mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
					if err != nil || mediaType != "application/json" {
						writeValidationError(w, "Content-Type must be application/json", "header")
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeValidationError writes a validation error response
func writeValidationError(w http.ResponseWriter, message, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	response := ValidationError{
		Error:   "validation_error",
		Message: message,
		Field:   field,
	}

	// Best effort, the status code is already sent
	_ = json.NewEncoder(w).Encode(response)
}
