package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

// CorrelationIDKey is the context key for correlation IDs
const CorrelationIDKey contextKey = "correlationID"

// SlogLogger provides structured logging using slog
type SlogLogger struct {
	logger    *slog.Logger
	component string
}

// NewSlogLogger creates a new logger using slog backend
func NewSlogLogger(component string) *SlogLogger {
	return NewSlogLoggerWithWriter(component, os.Stdout)
}

// NewSlogLoggerWithWriter creates a logger that writes to the given writer
func NewSlogLoggerWithWriter(component string, output io.Writer) *SlogLogger {
	return &SlogLogger{
		logger:    slog.New(createHandler(output)),
		component: component,
	}
}

// WithCorrelationID stores a correlation ID on the context for later log lines
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// createHandler creates an appropriate slog handler based on environment variables
func createHandler(output io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       getLogLevelSlog(),
		ReplaceAttr: replaceAttr,
	}

	if strings.ToUpper(os.Getenv("STACKPULSE_LOG_FORMAT")) == "JSON" {
		return slog.NewJSONHandler(output, opts)
	}
	return slog.NewTextHandler(output, opts)
}

// getLogLevelSlog determines the slog level from environment
func getLogLevelSlog() slog.Level {
	switch strings.ToUpper(os.Getenv("STACKPULSE_LOG_LEVEL")) {
	case logLevelTrace, logLevelDebug:
		return slog.LevelDebug
	case logLevelWarn:
		return slog.LevelWarn
	case logLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceAttr keeps level names stable across slog versions
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch level {
	case slog.LevelDebug:
		return slog.String(a.Key, logLevelDebug)
	case slog.LevelInfo:
		return slog.String(a.Key, logLevelInfo)
	case slog.LevelWarn:
		return slog.String(a.Key, logLevelWarn)
	case slog.LevelError:
		return slog.String(a.Key, logLevelError)
	}
	return a
}

// Debug logs a debug-level message
func (l *SlogLogger) Debug(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", l.component)
}

// Info logs an info-level message
func (l *SlogLogger) Info(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), "component", l.component)
}

// Warn logs a warning-level message
func (l *SlogLogger) Warn(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", l.component)
}

// Error logs an error-level message
func (l *SlogLogger) Error(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", l.component)
}

// WithContext returns a logger carrying the context's correlation ID, if any
func (l *SlogLogger) WithContext(ctx context.Context) *SlogLogger {
	if corrID, ok := ctx.Value(CorrelationIDKey).(string); ok && corrID != "" {
		return l.WithCorrelation(corrID)
	}
	return l
}

// WithCorrelation returns a logger with correlation ID
func (l *SlogLogger) WithCorrelation(correlationID string) *SlogLogger {
	return &SlogLogger{
		logger:    l.logger.With("correlation_id", correlationID),
		component: l.component,
	}
}

// WithFields returns a logger with additional fields
func (l *SlogLogger) WithFields(fields map[string]interface{}) *SlogLogger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &SlogLogger{
		logger:    l.logger.With(args...),
		component: l.component,
	}
}

// IsDebugEnabled returns true if debug logging is enabled
func (l *SlogLogger) IsDebugEnabled() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}

// Operation logs an operation with structured data
func (l *SlogLogger) Operation(ctx context.Context, operation string, details map[string]interface{}) {
	if !l.IsDebugEnabled() {
		return
	}

	args := []interface{}{"component", l.component, "operation", operation}
	for k, v := range details {
		args = append(args, k, v)
	}

	l.WithContext(ctx).logger.DebugContext(ctx, "Operation", args...)
}

// Success logs a successful operation
func (l *SlogLogger) Success(ctx context.Context, operation string, details ...interface{}) {
	args := []interface{}{"component", l.component, "operation", operation, "status", "success"}
	if len(details) > 0 {
		args = append(args, "details", details[0])
	}

	l.WithContext(ctx).logger.InfoContext(ctx, "Operation completed successfully", args...)
}

// Failure logs a failed operation
func (l *SlogLogger) Failure(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).logger.ErrorContext(ctx, "Operation failed",
		"component", l.component,
		"operation", operation,
		"status", "failed",
		"error", err)
}

// ProbeResult logs the outcome of a single liveness probe
func (l *SlogLogger) ProbeResult(deploymentID, service, status string, responseTimeMillis int64) {
	level := slog.LevelDebug
	if status != "healthy" {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, "Health probe finished",
		"component", l.component,
		"deployment_id", deploymentID,
		"service", service,
		"status", status,
		"response_time_ms", responseTimeMillis)
}

// StatusTransition logs a change of a deployment's overall status
func (l *SlogLogger) StatusTransition(deploymentID, from, to string) {
	l.logger.Info("Deployment status changed",
		"component", l.component,
		"deployment_id", deploymentID,
		"from", from,
		"to", to)
}

// Debugf logs a formatted debug message
func (l *SlogLogger) Debugf(format string, args ...interface{}) { l.Debug(format, args...) }

// Infof logs a formatted info message
func (l *SlogLogger) Infof(format string, args ...interface{}) { l.Info(format, args...) }

// Warnf logs a formatted warning message
func (l *SlogLogger) Warnf(format string, args ...interface{}) { l.Warn(format, args...) }

// Errorf logs a formatted error message
func (l *SlogLogger) Errorf(format string, args ...interface{}) { l.Error(format, args...) }
