package interfaces

import (
	"time"
)

// DeploymentID is a strongly-typed deployment identifier
type DeploymentID string

// ServiceName identifies one of the three tiers of a deployment
type ServiceName string

// Service tiers
const (
	ServiceFrontend ServiceName = "frontend"
	ServiceBackend  ServiceName = "backend"
	ServiceDatabase ServiceName = "database"
)

// AllServices lists the tiers in display order
var AllServices = []ServiceName{ServiceFrontend, ServiceBackend, ServiceDatabase}

// Valid reports whether the name is one of the three tiers
func (s ServiceName) Valid() bool {
	switch s {
	case ServiceFrontend, ServiceBackend, ServiceDatabase:
		return true
	}
	return false
}

// ServiceStatus is the lifecycle status of a single tier.
// Frontend and backend use pending/building/deployed/failed,
// the database uses pending/connecting/connected/failed.
type ServiceStatus string

// Service statuses
const (
	ServiceStatusPending    ServiceStatus = "pending"
	ServiceStatusBuilding   ServiceStatus = "building"
	ServiceStatusDeployed   ServiceStatus = "deployed"
	ServiceStatusConnecting ServiceStatus = "connecting"
	ServiceStatusConnected  ServiceStatus = "connected"
	ServiceStatusFailed     ServiceStatus = "failed"
)

// AllowsStatus reports whether status belongs to the tier's status domain
func (s ServiceName) AllowsStatus(status ServiceStatus) bool {
	switch status {
	case ServiceStatusPending, ServiceStatusFailed:
		return s.Valid()
	case ServiceStatusBuilding, ServiceStatusDeployed:
		return s == ServiceFrontend || s == ServiceBackend
	case ServiceStatusConnecting, ServiceStatusConnected:
		return s == ServiceDatabase
	}
	return false
}

// IsUp reports whether status is the terminal success state for the tier
func (s ServiceName) IsUp(status ServiceStatus) bool {
	if s == ServiceDatabase {
		return status == ServiceStatusConnected
	}
	return status == ServiceStatusDeployed
}

// Platform is the hosting platform of a tier. Each tier has its own set.
type Platform string

// Hosting platforms
const (
	PlatformVercel        Platform = "vercel"
	PlatformNetlify       Platform = "netlify"
	PlatformGitHubPages   Platform = "github-pages"
	PlatformRender        Platform = "render"
	PlatformHeroku        Platform = "heroku"
	PlatformRailway       Platform = "railway"
	PlatformAWS           Platform = "aws"
	PlatformMongoDBAtlas  Platform = "mongodb-atlas"
	PlatformAWSDocumentDB Platform = "aws-documentdb"
	PlatformLocal         Platform = "local"
)

var platformsByService = map[ServiceName][]Platform{
	ServiceFrontend: {PlatformVercel, PlatformNetlify, PlatformGitHubPages},
	ServiceBackend:  {PlatformRender, PlatformHeroku, PlatformRailway, PlatformAWS},
	ServiceDatabase: {PlatformMongoDBAtlas, PlatformAWSDocumentDB, PlatformLocal},
}

// AllowsPlatform reports whether p is a hosting platform of the tier
func (s ServiceName) AllowsPlatform(p Platform) bool {
	for _, candidate := range platformsByService[s] {
		if candidate == p {
			return true
		}
	}
	return false
}

// DefaultPlatform is the platform a new deployment starts with for the tier
func (s ServiceName) DefaultPlatform() Platform {
	if platforms := platformsByService[s]; len(platforms) > 0 {
		return platforms[0]
	}
	return ""
}

// DeploymentStatus is the overall status of a deployment
type DeploymentStatus string

// Deployment statuses
const (
	DeploymentStatusPending   DeploymentStatus = "pending"
	DeploymentStatusBuilding  DeploymentStatus = "building"
	DeploymentStatusDeployed  DeploymentStatus = "deployed"
	DeploymentStatusFailed    DeploymentStatus = "failed"
	DeploymentStatusCancelled DeploymentStatus = "cancelled"
)

// Valid reports whether the status is a known overall status
func (s DeploymentStatus) Valid() bool {
	switch s {
	case DeploymentStatusPending, DeploymentStatusBuilding, DeploymentStatusDeployed,
		DeploymentStatusFailed, DeploymentStatusCancelled:
		return true
	}
	return false
}

// Environment is the target environment of a deployment
type Environment string

// Environments
const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentStaging     Environment = "staging"
	EnvironmentProduction  Environment = "production"
)

// Valid reports whether the environment is known
func (e Environment) Valid() bool {
	return e == EnvironmentDevelopment || e == EnvironmentStaging || e == EnvironmentProduction
}

// ServiceState is the per-tier state owned by a deployment
type ServiceState struct {
	Status             ServiceStatus `json:"status"`
	URL                string        `json:"url,omitempty"`
	BuildTimeMillis    *int64        `json:"build_time_ms,omitempty"`
	Platform           Platform      `json:"platform,omitempty"`
	LastDeploymentTime *time.Time    `json:"last_deployment_time,omitempty"`
}

// Services holds the three tiers of a deployment
type Services struct {
	Frontend ServiceState `json:"frontend"`
	Backend  ServiceState `json:"backend"`
	Database ServiceState `json:"database"`
}

// Get returns a pointer to the named tier, or nil for an unknown name
func (s *Services) Get(name ServiceName) *ServiceState {
	switch name {
	case ServiceFrontend:
		return &s.Frontend
	case ServiceBackend:
		return &s.Backend
	case ServiceDatabase:
		return &s.Database
	}
	return nil
}

// LogLevel is the severity of a deployment log entry
type LogLevel string

// Log levels
const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelDebug LogLevel = "debug"
)

// Valid reports whether the level is known
func (l LogLevel) Valid() bool {
	switch l {
	case LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelDebug:
		return true
	}
	return false
}

// LogEntry is one immutable record in a deployment's audit log
type LogEntry struct {
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Service   ServiceName            `json:"service,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// HealthCheckResult is the outcome of probing one tier
type HealthCheckResult struct {
	Service            ServiceName  `json:"service"`
	Status             HealthStatus `json:"status"`
	ResponseTimeMillis int64        `json:"response_time_ms"`
	LastCheck          time.Time    `json:"last_check"`
	Uptime             float64      `json:"uptime"`
}

// Repository describes the source repository of a deployment
type Repository struct {
	URL    string `json:"url,omitempty"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
}

// PackageManager is the JavaScript package manager used to build a deployment
type PackageManager string

// Package managers
const (
	PackageManagerNPM  PackageManager = "npm"
	PackageManagerYarn PackageManager = "yarn"
	PackageManagerPNPM PackageManager = "pnpm"
)

// Valid reports whether the package manager is known
func (m PackageManager) Valid() bool {
	return m == PackageManagerNPM || m == PackageManagerYarn || m == PackageManagerPNPM
}

// EnvironmentVariable is one variable passed to the deployed services
type EnvironmentVariable struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	IsSecret bool   `json:"is_secret"`
}

// Configuration holds the build settings of a deployment
type Configuration struct {
	EnvironmentVariables []EnvironmentVariable `json:"environment_variables,omitempty"`
	BuildCommand         string                `json:"build_command,omitempty"`
	StartCommand         string                `json:"start_command,omitempty"`
	NodeVersion          string                `json:"node_version,omitempty"`
	PackageManager       PackageManager        `json:"package_manager,omitempty"`
}

// DeploymentMetrics summarizes build times and health check outcomes
type DeploymentMetrics struct {
	BuildDurationMillis *int64  `json:"build_duration_ms,omitempty"`
	ResponseTimeMillis  *int64  `json:"response_time_ms,omitempty"`
	Uptime              float64 `json:"uptime"`
	ErrorRate           float64 `json:"error_rate"`
	RequestCount        int64   `json:"request_count"`
	ErrorCount          int64   `json:"error_count"`
}

// Deployment is the aggregate tracking a three-tier rollout
type Deployment struct {
	ID           DeploymentID        `json:"id"`
	OwnerID      string              `json:"owner_id"`
	Name         string              `json:"name"`
	Description  string              `json:"description,omitempty"`
	Environment  Environment         `json:"environment"`
	Repository   Repository          `json:"repository"`
	Config       Configuration       `json:"configuration"`
	Metrics      DeploymentMetrics   `json:"metrics"`
	Status       DeploymentStatus    `json:"status"`
	Services     Services            `json:"services"`
	Logs         []LogEntry          `json:"logs"`
	HealthChecks []HealthCheckResult `json:"health_checks"`
	IsActive     bool                `json:"is_active"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Clone returns a deep copy so callers never alias stored state
func (d *Deployment) Clone() *Deployment {
	if d == nil {
		return nil
	}
	c := *d
	c.Services = Services{
		Frontend: cloneServiceState(d.Services.Frontend),
		Backend:  cloneServiceState(d.Services.Backend),
		Database: cloneServiceState(d.Services.Database),
	}
	if d.Logs != nil {
		c.Logs = make([]LogEntry, len(d.Logs))
		for i, entry := range d.Logs {
			c.Logs[i] = entry
			if entry.Metadata != nil {
				c.Logs[i].Metadata = make(map[string]interface{}, len(entry.Metadata))
				for k, v := range entry.Metadata {
					c.Logs[i].Metadata[k] = v
				}
			}
		}
	}
	if d.HealthChecks != nil {
		c.HealthChecks = append([]HealthCheckResult(nil), d.HealthChecks...)
	}
	if d.Config.EnvironmentVariables != nil {
		c.Config.EnvironmentVariables = append([]EnvironmentVariable(nil), d.Config.EnvironmentVariables...)
	}
	c.Metrics.BuildDurationMillis = cloneInt64(d.Metrics.BuildDurationMillis)
	c.Metrics.ResponseTimeMillis = cloneInt64(d.Metrics.ResponseTimeMillis)
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneServiceState(s ServiceState) ServiceState {
	c := s
	if s.BuildTimeMillis != nil {
		v := *s.BuildTimeMillis
		c.BuildTimeMillis = &v
	}
	if s.LastDeploymentTime != nil {
		v := *s.LastDeploymentTime
		c.LastDeploymentTime = &v
	}
	return c
}

// DeploymentFilter narrows List results; zero values match everything
type DeploymentFilter struct {
	OwnerID     string
	Status      DeploymentStatus
	Environment Environment
	ActiveOnly  bool
}

// Matches reports whether the deployment passes the filter
func (f DeploymentFilter) Matches(d *Deployment) bool {
	if f.OwnerID != "" && d.OwnerID != f.OwnerID {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Environment != "" && d.Environment != f.Environment {
		return false
	}
	if f.ActiveOnly && !d.IsActive {
		return false
	}
	return true
}
