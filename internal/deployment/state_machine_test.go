package deployment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

func services(frontend, backend, database interfaces.ServiceStatus) interfaces.Services {
	return interfaces.Services{
		Frontend: interfaces.ServiceState{Status: frontend},
		Backend:  interfaces.ServiceState{Status: backend},
		Database: interfaces.ServiceState{Status: database},
	}
}

func TestDeriveOverallStatus(t *testing.T) {
	t.Parallel()

	const (
		pending    = interfaces.ServiceStatusPending
		building   = interfaces.ServiceStatusBuilding
		deployed   = interfaces.ServiceStatusDeployed
		failed     = interfaces.ServiceStatusFailed
		connecting = interfaces.ServiceStatusConnecting
		connected  = interfaces.ServiceStatusConnected
	)

	tests := []struct {
		name     string
		services interfaces.Services
		want     interfaces.DeploymentStatus
	}{
		{"all pending", services(pending, pending, pending), interfaces.DeploymentStatusPending},
		{"frontend building", services(building, pending, pending), interfaces.DeploymentStatusBuilding},
		{"backend building", services(deployed, building, connected), interfaces.DeploymentStatusBuilding},
		{"database connecting only", services(pending, pending, connecting), interfaces.DeploymentStatusPending},
		{"all up", services(deployed, deployed, connected), interfaces.DeploymentStatusDeployed},
		{"database not yet connected", services(deployed, deployed, connecting), interfaces.DeploymentStatusPending},
		{"failed wins over deployed", services(deployed, deployed, failed), interfaces.DeploymentStatusFailed},
		{"failed wins over building", services(building, failed, pending), interfaces.DeploymentStatusFailed},
		{"frontend failed", services(failed, deployed, connected), interfaces.DeploymentStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DeriveOverallStatus(tt.services))
		})
	}
}

func TestDeriveOverallStatus_AllCombinations(t *testing.T) {
	t.Parallel()

	tierStatuses := []interfaces.ServiceStatus{
		interfaces.ServiceStatusPending, interfaces.ServiceStatusBuilding,
		interfaces.ServiceStatusDeployed, interfaces.ServiceStatusFailed,
	}
	dbStatuses := []interfaces.ServiceStatus{
		interfaces.ServiceStatusPending, interfaces.ServiceStatusConnecting,
		interfaces.ServiceStatusConnected, interfaces.ServiceStatusFailed,
	}

	for _, fe := range tierStatuses {
		for _, be := range tierStatuses {
			for _, db := range dbStatuses {
				s := services(fe, be, db)
				got := DeriveOverallStatus(s)
				name := fmt.Sprintf("%s/%s/%s", fe, be, db)

				assert.Equal(t, got, DeriveOverallStatus(s), "idempotent for %s", name)
				assert.NotEqual(t, interfaces.DeploymentStatusCancelled, got, "cancelled is never derived (%s)", name)

				anyFailed := fe == interfaces.ServiceStatusFailed || be == interfaces.ServiceStatusFailed || db == interfaces.ServiceStatusFailed
				switch {
				case anyFailed:
					assert.Equal(t, interfaces.DeploymentStatusFailed, got, name)
				case fe == interfaces.ServiceStatusDeployed && be == interfaces.ServiceStatusDeployed && db == interfaces.ServiceStatusConnected:
					assert.Equal(t, interfaces.DeploymentStatusDeployed, got, name)
				case fe == interfaces.ServiceStatusBuilding || be == interfaces.ServiceStatusBuilding:
					assert.Equal(t, interfaces.DeploymentStatusBuilding, got, name)
				default:
					assert.Equal(t, interfaces.DeploymentStatusPending, got, name)
				}
			}
		}
	}
}

func TestValidateServiceUpdate(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateServiceUpdate(interfaces.ServiceFrontend, interfaces.ServiceStatusBuilding))
	require.NoError(t, ValidateServiceUpdate(interfaces.ServiceDatabase, interfaces.ServiceStatusConnected))
	require.NoError(t, ValidateServiceUpdate(interfaces.ServiceBackend, interfaces.ServiceStatusFailed))

	err := ValidateServiceUpdate("cache", interfaces.ServiceStatusPending)
	require.ErrorIs(t, err, ErrUnknownService)
	depErr, ok := IsDeploymentError(err)
	require.True(t, ok)
	assert.Equal(t, 400, depErr.HTTPStatus)

	assert.ErrorIs(t, ValidateServiceUpdate(interfaces.ServiceDatabase, interfaces.ServiceStatusDeployed), ErrInvalidServiceStatus)
	assert.ErrorIs(t, ValidateServiceUpdate(interfaces.ServiceFrontend, interfaces.ServiceStatusConnected), ErrInvalidServiceStatus)
	assert.ErrorIs(t, ValidateServiceUpdate(interfaces.ServiceFrontend, "cancelled"), ErrInvalidServiceStatus)
}

func TestApplyServiceUpdate(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	d := &interfaces.Deployment{
		Status:   interfaces.DeploymentStatusPending,
		Services: services(interfaces.ServiceStatusPending, interfaces.ServiceStatusPending, interfaces.ServiceStatusPending),
	}
	url := "https://api.example.com"
	build := int64(4200)

	previous := applyServiceUpdate(d, interfaces.ServiceBackend, interfaces.ServiceStatusBuilding,
		ServicePatch{URL: &url, BuildTimeMillis: &build}, now)

	assert.Equal(t, interfaces.ServiceStatusPending, previous)
	assert.Equal(t, interfaces.ServiceStatusBuilding, d.Services.Backend.Status)
	assert.Equal(t, url, d.Services.Backend.URL)
	require.NotNil(t, d.Services.Backend.BuildTimeMillis)
	assert.Equal(t, build, *d.Services.Backend.BuildTimeMillis)
	require.NotNil(t, d.Services.Backend.LastDeploymentTime)
	assert.Equal(t, now, *d.Services.Backend.LastDeploymentTime)
	assert.Nil(t, d.Services.Frontend.LastDeploymentTime)
	assert.Equal(t, interfaces.DeploymentStatusBuilding, d.Status)
	assert.Equal(t, now, d.UpdatedAt)

	build = 1
	assert.Equal(t, int64(4200), *d.Services.Backend.BuildTimeMillis, "patch values are copied")
}

func TestAppendLog_BoundedToLastHundred(t *testing.T) {
	t.Parallel()
	d := &interfaces.Deployment{}
	for i := 0; i < 150; i++ {
		appendLog(d, interfaces.LogEntry{Level: interfaces.LogLevelInfo, Message: fmt.Sprintf("entry-%d", i)})
		assert.LessOrEqual(t, len(d.Logs), MaxLogEntries)
	}

	require.Len(t, d.Logs, MaxLogEntries)
	for i, entry := range d.Logs {
		assert.Equal(t, fmt.Sprintf("entry-%d", i+50), entry.Message)
	}
}

func TestRecordHealthCheck_ReplacesResults(t *testing.T) {
	t.Parallel()
	d := &interfaces.Deployment{Status: interfaces.DeploymentStatusBuilding}
	recordHealthCheck(d, []interfaces.HealthCheckResult{
		{Service: interfaces.ServiceFrontend, Status: interfaces.HealthStatusHealthy},
		{Service: interfaces.ServiceBackend, Status: interfaces.HealthStatusHealthy},
	})
	results := []interfaces.HealthCheckResult{{Service: interfaces.ServiceBackend, Status: interfaces.HealthStatusUnhealthy}}
	recordHealthCheck(d, results)

	require.Len(t, d.HealthChecks, 1)
	assert.Equal(t, interfaces.HealthStatusUnhealthy, d.HealthChecks[0].Status)
	assert.Equal(t, interfaces.DeploymentStatusBuilding, d.Status)

	results[0].Status = interfaces.HealthStatusHealthy
	assert.Equal(t, interfaces.HealthStatusUnhealthy, d.HealthChecks[0].Status)
}

func TestHealthPercentage(t *testing.T) {
	t.Parallel()
	d := &interfaces.Deployment{Services: services(interfaces.ServiceStatusDeployed, interfaces.ServiceStatusDeployed, interfaces.ServiceStatusConnecting)}
	assert.Equal(t, 67, HealthPercentage(d))

	d.Services.Database.Status = interfaces.ServiceStatusConnected
	assert.Equal(t, 100, HealthPercentage(d))

	d.Services = services(interfaces.ServiceStatusBuilding, interfaces.ServiceStatusPending, interfaces.ServiceStatusConnected)
	assert.Equal(t, 33, HealthPercentage(d))
}

func TestDeploymentDuration(t *testing.T) {
	t.Parallel()
	created := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	d := &interfaces.Deployment{Status: interfaces.DeploymentStatusBuilding, CreatedAt: created}

	_, ok := DeploymentDuration(d, created.Add(time.Hour))
	assert.False(t, ok)

	d.Status = interfaces.DeploymentStatusDeployed
	dur, ok := DeploymentDuration(d, created.Add(90*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, dur)
}

func TestLastLogs(t *testing.T) {
	t.Parallel()
	logs := []interfaces.LogEntry{{Message: "a"}, {Message: "b"}, {Message: "c"}}

	last := LastLogs(logs, 2)
	require.Len(t, last, 2)
	assert.Equal(t, "b", last[0].Message)
	assert.Equal(t, "c", last[1].Message)

	assert.Len(t, LastLogs(logs, 0), 3)
	assert.Len(t, LastLogs(logs, 10), 3)
	assert.Empty(t, LastLogs(nil, 5))
}

func TestRecordHealthCheck_FoldsMetrics(t *testing.T) {
	t.Parallel()
	d := &interfaces.Deployment{}

	recordHealthCheck(d, nil)
	assert.Zero(t, d.Metrics.RequestCount)
	assert.Nil(t, d.Metrics.ResponseTimeMillis)

	recordHealthCheck(d, []interfaces.HealthCheckResult{
		{Service: interfaces.ServiceFrontend, Status: interfaces.HealthStatusHealthy, ResponseTimeMillis: 100},
		{Service: interfaces.ServiceBackend, Status: interfaces.HealthStatusHealthy, ResponseTimeMillis: 301},
	})
	require.NotNil(t, d.Metrics.ResponseTimeMillis)
	assert.Equal(t, int64(201), *d.Metrics.ResponseTimeMillis)
	assert.Equal(t, int64(2), d.Metrics.RequestCount)
	assert.Equal(t, 100.0, d.Metrics.Uptime)
	assert.Zero(t, d.Metrics.ErrorRate)

	recordHealthCheck(d, []interfaces.HealthCheckResult{
		{Service: interfaces.ServiceFrontend, Status: interfaces.HealthStatusUnhealthy},
	})
	assert.Equal(t, int64(3), d.Metrics.RequestCount)
	assert.Equal(t, int64(1), d.Metrics.ErrorCount)
	assert.Equal(t, 33.33, d.Metrics.ErrorRate)
	assert.Equal(t, 66.67, d.Metrics.Uptime)
	assert.Equal(t, int64(201), *d.Metrics.ResponseTimeMillis, "no healthy result keeps the last response time")
}

func TestApplyServiceUpdate_TracksBuildDuration(t *testing.T) {
	t.Parallel()
	d := &interfaces.Deployment{Services: services(interfaces.ServiceStatusPending, interfaces.ServiceStatusPending, interfaces.ServiceStatusPending)}
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	applyServiceUpdate(d, interfaces.ServiceDatabase, interfaces.ServiceStatusConnecting, ServicePatch{}, now)
	assert.Nil(t, d.Metrics.BuildDurationMillis)

	frontend := int64(1200)
	applyServiceUpdate(d, interfaces.ServiceFrontend, interfaces.ServiceStatusDeployed, ServicePatch{BuildTimeMillis: &frontend}, now)
	backend := int64(800)
	applyServiceUpdate(d, interfaces.ServiceBackend, interfaces.ServiceStatusDeployed, ServicePatch{BuildTimeMillis: &backend}, now)

	require.NotNil(t, d.Metrics.BuildDurationMillis)
	assert.Equal(t, int64(2000), *d.Metrics.BuildDurationMillis)
}

func TestMaskConfiguration(t *testing.T) {
	t.Parallel()
	config := interfaces.Configuration{
		EnvironmentVariables: []interfaces.EnvironmentVariable{
			{Key: "NODE_ENV", Value: "production"},
			{Key: "SESSION_KEY", Value: "abc", IsSecret: true},
			{Key: "GITHUB_TOKEN", Value: "ghp_123"},
		},
	}

	masked := MaskConfiguration(config)
	assert.Equal(t, "production", masked.EnvironmentVariables[0].Value)
	assert.Equal(t, "<REDACTED>", masked.EnvironmentVariables[1].Value)
	assert.Equal(t, "<REDACTED>", masked.EnvironmentVariables[2].Value)
	assert.Equal(t, "abc", config.EnvironmentVariables[1].Value, "input is not modified")
}

func TestNormalizeConfiguration(t *testing.T) {
	t.Parallel()

	got, err := normalizeConfiguration(interfaces.Configuration{
		PackageManager:       interfaces.PackageManagerYarn,
		BuildCommand:         "  yarn build ",
		EnvironmentVariables: []interfaces.EnvironmentVariable{{Key: " API_URL ", Value: "https://api"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "yarn build", got.BuildCommand)
	assert.Equal(t, "npm start", got.StartCommand)
	assert.Equal(t, "18.x", got.NodeVersion)
	assert.Equal(t, "API_URL", got.EnvironmentVariables[0].Key)

	tests := []struct {
		name   string
		config interfaces.Configuration
	}{
		{"unknown package manager", interfaces.Configuration{PackageManager: "bun"}},
		{"invalid key", interfaces.Configuration{EnvironmentVariables: []interfaces.EnvironmentVariable{{Key: "MY-VAR"}}}},
		{"duplicate key", interfaces.Configuration{EnvironmentVariables: []interfaces.EnvironmentVariable{{Key: "A"}, {Key: "A"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := normalizeConfiguration(tt.config)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
