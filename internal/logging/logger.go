// Package logging provides a leveled printf logger for the service internals
package logging

import (
	"os"

	mainlogging "github.com/stackpulse/stackpulse/pkg/logging"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// DebugLevel is for detailed debugging information
	DebugLevel LogLevel = iota
	// InfoLevel is for general informational messages
	InfoLevel
	// WarnLevel is for warning messages that indicate potential problems
	WarnLevel
	// ErrorLevel is for error messages that indicate serious problems
	ErrorLevel
)

// Logger provides structured logging
type Logger struct {
	level      LogLevel
	prefix     string
	slogLogger *mainlogging.SlogLogger
}

// NewLogger creates a logger with the given prefix
func NewLogger(prefix string) *Logger {
	level := InfoLevel
	if os.Getenv("STACKPULSE_DEBUG") == "true" {
		level = DebugLevel
	}
	// Reduce verbosity during tests
	if os.Getenv("STACKPULSE_TEST_MODE") == "true" {
		level = ErrorLevel
	}
	return &Logger{
		level:      level,
		prefix:     prefix,
		slogLogger: mainlogging.NewSlogLogger(prefix),
	}
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level <= DebugLevel {
		l.slogLogger.Debugf(format, args...)
	}
}

// Infof logs an info message
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level <= InfoLevel {
		l.slogLogger.Infof(format, args...)
	}
}

// Warnf logs a warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.level <= WarnLevel {
		l.slogLogger.Warnf(format, args...)
	}
}

// Errorf logs an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.level <= ErrorLevel {
		l.slogLogger.Errorf(format, args...)
	}
}
