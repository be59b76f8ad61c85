package deployment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/stackpulse/stackpulse/internal/events"
	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/logging"
	"github.com/stackpulse/stackpulse/internal/probe"
	"github.com/stackpulse/stackpulse/internal/utils"
	mainlogging "github.com/stackpulse/stackpulse/pkg/logging"
)

// HealthProber is the probing capability the service needs
type HealthProber interface {
	EndpointFor(service interfaces.ServiceName, baseURL string) probe.Endpoint
	ProbeAll(ctx context.Context, endpoints []probe.Endpoint) []interfaces.HealthCheckResult
}

// Service owns every mutation of deployment state. Mutations of one
// deployment are serialized; different deployments proceed independently.
type Service struct {
	store    interfaces.DeploymentStore
	metrics  interfaces.MetricStore
	archiver interfaces.Archiver
	prober   HealthProber
	bus      *events.EventBus
	locks    *keyedMutex
	now      func() time.Time
	logger   *logging.Logger
}

// ServiceConfig holds all dependencies needed by the deployment service
type ServiceConfig struct {
	Store       interfaces.DeploymentStore
	MetricStore interfaces.MetricStore
	Archiver    interfaces.Archiver // optional
	Prober      HealthProber        // defaults to probe.New()
	EventBus    *events.EventBus    // optional
	Now         func() time.Time    // defaults to time.Now
}

// CreateRequest describes a new deployment
type CreateRequest struct {
	OwnerID       string                                         `json:"owner_id"`
	Name          string                                         `json:"name"`
	Description   string                                         `json:"description,omitempty"`
	Environment   interfaces.Environment                         `json:"environment,omitempty"`
	Repository    interfaces.Repository                          `json:"repository"`
	ServiceURLs   map[interfaces.ServiceName]string              `json:"service_urls,omitempty"`
	Platforms     map[interfaces.ServiceName]interfaces.Platform `json:"platforms,omitempty"`
	Configuration *interfaces.Configuration                      `json:"configuration,omitempty"`
}

// UpdateRequest changes the descriptive fields of a deployment. Nil fields
// are left alone. A configuration replaces the current one wholesale.
type UpdateRequest struct {
	Name          *string                   `json:"name,omitempty"`
	Description   *string                   `json:"description,omitempty"`
	Environment   *interfaces.Environment   `json:"environment,omitempty"`
	Configuration *interfaces.Configuration `json:"configuration,omitempty"`
}

// NewService creates a new deployment service
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("deployment store is required")
	}
	if cfg.MetricStore == nil {
		return nil, errors.New("metric store is required")
	}
	if cfg.Prober == nil {
		cfg.Prober = probe.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:    cfg.Store,
		metrics:  cfg.MetricStore,
		archiver: cfg.Archiver,
		prober:   cfg.Prober,
		bus:      cfg.EventBus,
		locks:    newKeyedMutex(),
		now:      cfg.Now,
		logger:   logging.NewLogger("deployment-service"),
	}, nil
}

// Create registers a new pending deployment under a fresh id
func (s *Service) Create(ctx context.Context, req CreateRequest) (*interfaces.Deployment, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	description, err := validateDescription(req.Description)
	if err != nil {
		return nil, err
	}
	env := req.Environment
	if env == "" {
		env = interfaces.EnvironmentDevelopment
	}
	if !env.Valid() {
		return nil, fmt.Errorf("%w: unknown environment %q", ErrInvalidRequest, env)
	}
	for service := range req.ServiceURLs {
		if !service.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
		}
	}
	for service, platform := range req.Platforms {
		if !service.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
		}
		if !service.AllowsPlatform(platform) {
			return nil, fmt.Errorf("%w: platform %q is not available for %s", ErrInvalidServiceFields, platform, service)
		}
	}
	config := DefaultConfiguration()
	if req.Configuration != nil {
		if config, err = normalizeConfiguration(*req.Configuration); err != nil {
			return nil, err
		}
	}

	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate deployment id: %w", err)
	}

	now := s.now()
	d := &interfaces.Deployment{
		ID:          interfaces.DeploymentID(id),
		OwnerID:     req.OwnerID,
		Name:        name,
		Description: description,
		Environment: env,
		Repository:  req.Repository,
		Config:      config,
		Status:      interfaces.DeploymentStatusPending,
		Services: interfaces.Services{
			Frontend: newServiceState(interfaces.ServiceFrontend, req.Platforms),
			Backend:  newServiceState(interfaces.ServiceBackend, req.Platforms),
			Database: newServiceState(interfaces.ServiceDatabase, req.Platforms),
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for service, url := range req.ServiceURLs {
		d.Services.Get(service).URL = url
	}
	appendLog(d, interfaces.LogEntry{
		Level:     interfaces.LogLevelInfo,
		Message:   fmt.Sprintf("Deployment %s created for %s", name, env),
		Timestamp: now,
	})

	if err := s.store.Put(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save deployment: %w", err)
	}
	s.logger.Infof("Created deployment %s (%s)", d.ID, name)
	s.bus.PublishStatusChange(d.ID, "", d.Status)
	return d, nil
}

func newServiceState(service interfaces.ServiceName, platforms map[interfaces.ServiceName]interfaces.Platform) interfaces.ServiceState {
	platform, ok := platforms[service]
	if !ok {
		platform = service.DefaultPlatform()
	}
	return interfaces.ServiceState{Status: interfaces.ServiceStatusPending, Platform: platform}
}

// Update changes the name, description, environment or configuration of a
// deployment and records the change in its log.
func (s *Service) Update(ctx context.Context, id interfaces.DeploymentID, req UpdateRequest) (*interfaces.Deployment, error) {
	var (
		name, description string
		config            interfaces.Configuration
		err               error
	)
	if req.Name != nil {
		if name, err = validateName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if description, err = validateDescription(*req.Description); err != nil {
			return nil, err
		}
	}
	if req.Environment != nil && !req.Environment.Valid() {
		return nil, fmt.Errorf("%w: unknown environment %q", ErrInvalidRequest, *req.Environment)
	}
	if req.Configuration != nil {
		if config, err = normalizeConfiguration(*req.Configuration); err != nil {
			return nil, err
		}
	}

	var changed []string
	d, err := s.mutate(ctx, id, func(d *interfaces.Deployment) error {
		if req.Name != nil && name != d.Name {
			d.Name = name
			changed = append(changed, "name")
		}
		if req.Description != nil && description != d.Description {
			d.Description = description
			changed = append(changed, "description")
		}
		if req.Environment != nil && *req.Environment != d.Environment {
			d.Environment = *req.Environment
			changed = append(changed, "environment")
		}
		if req.Configuration != nil {
			d.Config = config
			changed = append(changed, "configuration")
		}
		if len(changed) == 0 {
			return nil
		}
		appendLog(d, interfaces.LogEntry{
			Level:     interfaces.LogLevelInfo,
			Message:   "Deployment updated",
			Timestamp: s.now(),
			Metadata:  map[string]interface{}{interfaces.MetadataKeyFields: append([]string(nil), changed...)},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		s.logger.Infof("Updated deployment %s: %s", id, strings.Join(changed, ", "))
	}
	return d, nil
}

// Get returns a copy of the deployment
func (s *Service) Get(ctx context.Context, id interfaces.DeploymentID) (*interfaces.Deployment, error) {
	return s.load(ctx, id)
}

// List returns deployments matching the filter, newest first
func (s *Service) List(ctx context.Context, filter interfaces.DeploymentFilter) ([]*interfaces.Deployment, error) {
	deployments, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	sort.SliceStable(deployments, func(i, j int) bool {
		return deployments[i].CreatedAt.After(deployments[j].CreatedAt)
	})
	return deployments, nil
}

// UpdateServiceStatus sets one service's status, merges extra fields and
// re-derives the overall status. Nothing is saved when validation fails.
func (s *Service) UpdateServiceStatus(
	ctx context.Context,
	id interfaces.DeploymentID,
	service interfaces.ServiceName,
	status interfaces.ServiceStatus,
	extra map[string]interface{},
) (*interfaces.Deployment, error) {
	if err := ValidateServiceUpdate(service, status); err != nil {
		return nil, err
	}
	patch, err := DecodeServicePatch(extra)
	if err != nil {
		return nil, err
	}
	if patch.Platform != nil && !service.AllowsPlatform(*patch.Platform) {
		return nil, fmt.Errorf("%w: platform %q is not available for %s", ErrInvalidServiceFields, *patch.Platform, service)
	}

	var previous interfaces.DeploymentStatus
	d, err := s.mutate(ctx, id, func(d *interfaces.Deployment) error {
		if d.Status == interfaces.DeploymentStatusCancelled {
			return fmt.Errorf("%w: %s", ErrDeploymentCancelled, id)
		}
		previous = d.Status
		applyServiceUpdate(d, service, status, patch, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != d.Status {
		mainlogging.StatusChange(string(id), string(previous), string(d.Status))
		s.bus.PublishStatusChange(id, previous, d.Status)
	}
	return d, nil
}

// AppendLog adds an entry to the deployment's bounded log. An empty level
// means info. Secrets in the message and metadata are redacted before the
// entry is stored.
func (s *Service) AppendLog(ctx context.Context, id interfaces.DeploymentID, entry interfaces.LogEntry) (*interfaces.LogEntry, error) {
	entry.Message = utils.RedactSensitiveString(entry.Message)
	entry.Metadata = utils.RedactSensitiveMap(entry.Metadata)
	if entry.Level == "" {
		entry.Level = interfaces.LogLevelInfo
	}
	if !entry.Level.Valid() {
		return nil, fmt.Errorf("%w: unknown log level %q", ErrInvalidRequest, entry.Level)
	}
	if entry.Service != "" && !entry.Service.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, entry.Service)
	}
	_, err := s.mutate(ctx, id, func(d *interfaces.Deployment) error {
		entry.Timestamp = s.now()
		appendLog(d, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Logs returns up to limit of the newest log entries in chronological order.
// A non-positive limit returns all retained entries.
func (s *Service) Logs(ctx context.Context, id interfaces.DeploymentID, limit int) ([]interfaces.LogEntry, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return LastLogs(d.Logs, limit), nil
}

// RecordHealthCheck replaces the deployment's health check results.
// It never changes the overall status.
func (s *Service) RecordHealthCheck(ctx context.Context, id interfaces.DeploymentID, results []interfaces.HealthCheckResult) error {
	_, err := s.mutate(ctx, id, func(d *interfaces.Deployment) error {
		recordHealthCheck(d, results)
		return nil
	})
	if err != nil {
		return err
	}
	s.bus.PublishHealthChecked(id, results)
	return nil
}

// RunHealthChecks probes the frontend and backend URLs of a deployment and
// records the results. Probing happens without holding the deployment lock.
func (s *Service) RunHealthChecks(ctx context.Context, id interfaces.DeploymentID) ([]interfaces.HealthCheckResult, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var endpoints []probe.Endpoint
	for _, service := range []interfaces.ServiceName{interfaces.ServiceFrontend, interfaces.ServiceBackend} {
		if url := d.Services.Get(service).URL; url != "" {
			endpoints = append(endpoints, s.prober.EndpointFor(service, url))
		}
	}

	results := s.prober.ProbeAll(ctx, endpoints)
	for _, r := range results {
		mainlogging.ProbeOutcome(string(id), string(r.Service), string(r.Status), r.ResponseTimeMillis)
	}

	if err := s.RecordHealthCheck(ctx, id, results); err != nil {
		return nil, err
	}
	return results, nil
}

// Cancel moves the deployment into the terminal cancelled state.
// Cancelling an already cancelled deployment is a no-op.
func (s *Service) Cancel(ctx context.Context, id interfaces.DeploymentID, reason string) (*interfaces.Deployment, error) {
	var previous interfaces.DeploymentStatus
	d, err := s.mutate(ctx, id, func(d *interfaces.Deployment) error {
		previous = d.Status
		if previous == interfaces.DeploymentStatusCancelled {
			return nil
		}
		msg := "Deployment cancelled"
		if reason != "" {
			msg += ": " + reason
		}
		d.Status = interfaces.DeploymentStatusCancelled
		d.IsActive = false
		appendLog(d, interfaces.LogEntry{
			Level:     interfaces.LogLevelWarn,
			Message:   msg,
			Timestamp: s.now(),
			Metadata: map[string]interface{}{
				interfaces.MetadataKeyPreviousStatus: string(previous),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous != interfaces.DeploymentStatusCancelled {
		mainlogging.StatusChange(string(id), string(previous), string(d.Status))
		s.bus.PublishStatusChange(id, previous, d.Status)
	}
	return d, nil
}

// Delete removes the deployment and cascades to its metrics. When an
// archiver is configured the deployment is archived first. A failure after
// the record is removed restores it.
func (s *Service) Delete(ctx context.Context, id interfaces.DeploymentID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	tx := NewTransaction(string(id))
	if s.archiver != nil {
		tx.AddOperation(
			Operation{Name: "archive_deployment", Func: func(ctx context.Context) error {
				return s.archiver.Archive(ctx, d)
			}},
			Compensation{Name: "keep_archive"},
		)
	}
	tx.AddOperation(
		Operation{Name: "delete_deployment", Func: func(ctx context.Context) error {
			return s.store.Delete(ctx, id)
		}},
		Compensation{Name: "restore_deployment", Func: func(ctx context.Context) error {
			return s.store.Put(ctx, d)
		}},
	)
	var removed int
	tx.AddOperation(
		Operation{Name: "delete_metrics", Func: func(ctx context.Context) error {
			n, err := s.metrics.DeleteAll(ctx, id)
			removed = n
			return err
		}},
		Compensation{Name: "delete_metrics"},
	)

	if err := tx.Execute(ctx); err != nil {
		return fmt.Errorf("failed to delete deployment %s: %w", id, err)
	}

	s.logger.Infof("Deleted deployment %s and %d metric samples", id, removed)
	s.bus.PublishDeleted(id, d.Status)
	return nil
}

// mutate loads the deployment under its lock, applies fn and saves the
// result. If fn or the save fails the stored deployment is unchanged.
func (s *Service) mutate(ctx context.Context, id interfaces.DeploymentID, fn func(d *interfaces.Deployment) error) (*interfaces.Deployment, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	d.UpdatedAt = s.now()
	if err := s.store.Put(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save deployment %s: %w", id, err)
	}
	return d.Clone(), nil
}

func (s *Service) load(ctx context.Context, id interfaces.DeploymentID) (*interfaces.Deployment, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: deployment id is required", ErrInvalidRequest)
	}
	d, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDeploymentNotFound, id)
		}
		return nil, fmt.Errorf("failed to load deployment %s: %w", id, err)
	}
	return d, nil
}
