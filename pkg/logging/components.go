// Package logging provides structured logging support for StackPulse
package logging

import "time"

// Probe logger for liveness probe operations
var Probe = NewLogger("probe")

// Metrics logger for metric store operations
var Metrics = NewLogger("metrics")

// State logger for deployment state operations
var State = NewLogger("state")

// Lockout logger for login attempt tracking
var Lockout = NewLogger("lockout")

// Scheduler logger for background probe and retention jobs
var Scheduler = NewLogger("scheduler")

// Config logger for configuration operations
var Config = NewLogger("config")

// ProbeOutcome logs a probe result for one service of a deployment
func ProbeOutcome(deploymentID, service, status string, responseTimeMillis int64) {
	Probe.Slog().ProbeResult(deploymentID, service, status, responseTimeMillis)
}

// ProbeError logs a transport level probe failure
func ProbeError(deploymentID, service, url string, err error) {
	Probe.Debug("probe deployment=%s service=%s url=%s error=%v", deploymentID, service, url, err)
}

// StatusChange logs an overall status transition
func StatusChange(deploymentID, from, to string) {
	if from == to {
		return
	}
	State.Slog().StatusTransition(deploymentID, from, to)
}

// MetricOperation logs a metric store operation
func MetricOperation(operation, deploymentID string, count int) {
	Metrics.Debug("operation=%s deployment=%s count=%d", operation, deploymentID, count)
}

// LockoutEngaged logs that an account has been locked
func LockoutEngaged(accountID string, until time.Time) {
	Lockout.Warn("account=%s locked until=%s", accountID, until.Format(time.RFC3339))
}

// SweepComplete logs a finished retention sweep
func SweepComplete(removed int, elapsed time.Duration) {
	Scheduler.Info("retention sweep removed=%d duration=%v", removed, elapsed)
}
