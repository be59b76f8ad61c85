package deployment

import (
	"fmt"
	"math"
	"time"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// MaxLogEntries is the number of log entries a deployment retains
const MaxLogEntries = 100

// DeriveOverallStatus computes the overall status from the three service
// statuses. Rules apply in priority order: any failed service fails the
// deployment, all three up means deployed, a building frontend or backend
// means building, otherwise pending.
func DeriveOverallStatus(s interfaces.Services) interfaces.DeploymentStatus {
	if s.Frontend.Status == interfaces.ServiceStatusFailed ||
		s.Backend.Status == interfaces.ServiceStatusFailed ||
		s.Database.Status == interfaces.ServiceStatusFailed {
		return interfaces.DeploymentStatusFailed
	}
	if s.Frontend.Status == interfaces.ServiceStatusDeployed &&
		s.Backend.Status == interfaces.ServiceStatusDeployed &&
		s.Database.Status == interfaces.ServiceStatusConnected {
		return interfaces.DeploymentStatusDeployed
	}
	if s.Frontend.Status == interfaces.ServiceStatusBuilding ||
		s.Backend.Status == interfaces.ServiceStatusBuilding {
		return interfaces.DeploymentStatusBuilding
	}
	return interfaces.DeploymentStatusPending
}

// ValidateServiceUpdate checks the service name and that status belongs to its domain
func ValidateServiceUpdate(service interfaces.ServiceName, status interfaces.ServiceStatus) error {
	if !service.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	if !service.AllowsStatus(status) {
		return fmt.Errorf("%w: %q for %s", ErrInvalidServiceStatus, status, service)
	}
	return nil
}

// applyServiceUpdate sets the service status, stamps lastDeploymentTime, merges
// the patch and re-derives the overall status. It returns the previous
// service status. The caller validates inputs first.
func applyServiceUpdate(
	d *interfaces.Deployment,
	service interfaces.ServiceName,
	status interfaces.ServiceStatus,
	patch ServicePatch,
	now time.Time,
) interfaces.ServiceStatus {
	state := d.Services.Get(service)
	previous := state.Status

	state.Status = status
	ts := now
	state.LastDeploymentTime = &ts
	patch.applyTo(state)

	d.Status = DeriveOverallStatus(d.Services)
	d.Metrics.BuildDurationMillis = totalBuildTime(d.Services)
	d.UpdatedAt = now
	return previous
}

// totalBuildTime sums the known frontend and backend build times
func totalBuildTime(s interfaces.Services) *int64 {
	var total int64
	known := false
	for _, state := range []interfaces.ServiceState{s.Frontend, s.Backend} {
		if state.BuildTimeMillis != nil {
			total += *state.BuildTimeMillis
			known = true
		}
	}
	if !known {
		return nil
	}
	return &total
}

// appendLog adds an entry and evicts from the front so at most MaxLogEntries remain
func appendLog(d *interfaces.Deployment, entry interfaces.LogEntry) {
	d.Logs = append(d.Logs, entry)
	if overflow := len(d.Logs) - MaxLogEntries; overflow > 0 {
		trimmed := make([]interfaces.LogEntry, MaxLogEntries)
		copy(trimmed, d.Logs[overflow:])
		d.Logs = trimmed
	}
}

// recordHealthCheck replaces the health check results wholesale and folds
// them into the metrics summary
func recordHealthCheck(d *interfaces.Deployment, results []interfaces.HealthCheckResult) {
	d.HealthChecks = append([]interfaces.HealthCheckResult(nil), results...)
	foldHealthMetrics(&d.Metrics, results)
}

// foldHealthMetrics counts each result as one request. Response time is the
// mean of the healthy results of the latest cycle. Uptime and error rate are
// percentages over every request counted so far.
func foldHealthMetrics(m *interfaces.DeploymentMetrics, results []interfaces.HealthCheckResult) {
	if len(results) == 0 {
		return
	}
	var latency, healthy int64
	for _, r := range results {
		m.RequestCount++
		if r.Status == interfaces.HealthStatusHealthy {
			latency += r.ResponseTimeMillis
			healthy++
		} else {
			m.ErrorCount++
		}
	}
	if healthy > 0 {
		avg := int64(math.Round(float64(latency) / float64(healthy)))
		m.ResponseTimeMillis = &avg
	}
	m.ErrorRate = roundPercent(float64(m.ErrorCount) / float64(m.RequestCount) * 100)
	m.Uptime = roundPercent(100 - m.ErrorRate)
}

func roundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}

// HealthPercentage is the share of services in their up state, rounded to a whole percent
func HealthPercentage(d *interfaces.Deployment) int {
	up := 0
	for _, name := range interfaces.AllServices {
		if name.IsUp(d.Services.Get(name).Status) {
			up++
		}
	}
	return int(math.Round(float64(up) / float64(len(interfaces.AllServices)) * 100))
}

// DeploymentDuration is the time since creation for a deployed deployment
func DeploymentDuration(d *interfaces.Deployment, now time.Time) (time.Duration, bool) {
	if d.Status != interfaces.DeploymentStatusDeployed {
		return 0, false
	}
	return now.Sub(d.CreatedAt), true
}

// LastLogs returns the newest limit entries in chronological order
func LastLogs(logs []interfaces.LogEntry, limit int) []interfaces.LogEntry {
	if limit <= 0 || limit > len(logs) {
		limit = len(logs)
	}
	out := make([]interfaces.LogEntry, limit)
	copy(out, logs[len(logs)-limit:])
	return out
}
