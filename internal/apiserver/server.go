// Package apiserver provides the HTTP API for deployments, metrics and
// attempt lockout on top of a running background system.
package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/stackpulse/stackpulse/internal/apiserver/handlers"
	customMiddleware "github.com/stackpulse/stackpulse/internal/apiserver/middleware"
	"github.com/stackpulse/stackpulse/internal/config"
	"github.com/stackpulse/stackpulse/internal/logging"
	"github.com/stackpulse/stackpulse/internal/system"
)

// APIServer provides HTTP API endpoints for deployment monitoring
type APIServer struct {
	router  chi.Router
	server  *http.Server
	system  *system.BackgroundSystem
	config  *config.ServerConfig
	started time.Time
	logger  *logging.Logger
}

// NewAPIServer creates the API server for sys
func NewAPIServer(cfg *config.ServerConfig, sys *system.BackgroundSystem) (*APIServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if sys == nil {
		return nil, fmt.Errorf("background system is required")
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID) // Generate unique request ID for tracing
	router.Use(middleware.RealIP)    // Get real client IP for logging
	if cfg.Debug {
		router.Use(middleware.Logger)
	}
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes) // Remove trailing slashes for consistent routing
	router.Use(customMiddleware.RequestMetrics(sys.Metrics))
	router.Use(middleware.Timeout(RequestTimeout))

	s := &APIServer{
		router: router,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  ReadTimeout,
			WriteTimeout: WriteTimeout,
			IdleTimeout:  IdleTimeout,
		},
		system:  sys,
		config:  cfg,
		started: time.Now(),
		logger:  logging.NewLogger("apiserver"),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	// JSON instead of the default text 404
	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "The requested endpoint was not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed for this endpoint")
	})

	return s, nil
}

func (s *APIServer) setupRoutes() error {
	deploymentHandler, err := handlers.NewDeploymentHandler(s.system.Deployments)
	if err != nil {
		return fmt.Errorf("failed to create deployment handler: %w", err)
	}
	metricsHandler, err := handlers.NewMetricsHandler(handlers.MetricsHandlerConfig{
		Deployments: s.system.Deployments,
		Store:       s.system.MetricStore,
		Aggregator:  s.system.Aggregator,
		Trends:      s.system.Trends,
		Recorder:    s.system.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics handler: %w", err)
	}
	authHandler, err := handlers.NewAuthHandler(s.system.Lockout)
	if err != nil {
		return fmt.Errorf("failed to create auth handler: %w", err)
	}

	s.router.Route(APIPrefix, func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			WriteError(w, http.StatusNotFound, "not_found", "The requested endpoint was not found")
		})

		r.Use(customMiddleware.ContentTypeValidator())

		idValidator := customMiddleware.IDValidator("id")
		deploymentHandler.RegisterRoutes(r, idValidator, customMiddleware.DeploymentBodyValidator())
		metricsHandler.RegisterRoutes(r, idValidator)
		authHandler.RegisterRoutes(r, customMiddleware.PrincipalValidator("principal"))

		r.Get("/system/health", s.getSystemHealth)
		r.Get("/system/health/ready", s.getReadiness)
		r.Get("/system/health/live", s.getLiveness)
	})

	// Prometheus exposition
	s.router.Handle(config.APIEndpointMetrics, s.system.Metrics.Handler())

	s.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", s.config.Port)),
	))

	return nil
}

// componentHealth is the health entry of one backend
type componentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// getSystemHealth returns system health status
// @Summary Health check
// @Description Check the stores, the archive and the probe dispatcher
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Service is healthy"
// @Failure 503 {object} map[string]interface{} "Service degraded"
// @Router /system/health [get]
func (s *APIServer) getSystemHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	healthy := true
	components := make(map[string]componentHealth)
	checks := s.system.Ping(ctx)
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := checks[name]; err != nil {
			healthy = false
			components[name] = componentHealth{Status: "unhealthy", Message: err.Error()}
			continue
		}
		components[name] = componentHealth{Status: "healthy"}
	}

	dispatcher := s.system.Dispatcher
	queued := dispatcher.GetQueuedCount()
	workers := dispatcher.GetWorkerCount()
	s.system.Metrics.UpdateQueueDepth(queued)
	s.system.Metrics.UpdateActiveWorkers(workers)
	if queued > HighQueueDepth {
		components["probe_queue"] = componentHealth{Status: "warning", Message: "Queue depth is high"}
	}

	m := s.system.Metrics.GetSystemMetrics()
	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	WriteJSON(w, statusCode, map[string]interface{}{
		"status":     status,
		"time":       time.Now().UTC().Format(time.RFC3339),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"components": components,
		"scheduler": map[string]interface{}{
			"type":    s.config.Scheduler.Type,
			"workers": workers,
			"queued":  queued,
		},
		"probes": map[string]interface{}{
			"run":              m.ProbesRun,
			"healthy":          m.ProbesHealthy,
			"unhealthy":        m.ProbesUnhealthy,
			"average_probe_ms": m.AverageProbeTime.Milliseconds(),
		},
		"samples": map[string]interface{}{
			"recorded": m.SamplesRecorded,
			"expired":  m.SamplesExpired,
		},
		"system": runtimeStats(),
		"version": map[string]interface{}{
			"api": APIVersion,
			"app": config.AppVersion,
		},
	})
}

// getReadiness reports whether the stores and the dispatcher can serve traffic
// @Summary Readiness check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Ready"
// @Failure 503 {object} map[string]interface{} "Not ready"
// @Router /system/health/ready [get]
func (s *APIServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	ready := true
	checks := make(map[string]bool)
	for name, err := range s.system.Ping(ctx) {
		checks[name] = err == nil
		if err != nil {
			ready = false
		}
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	WriteJSON(w, statusCode, map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// getLiveness answers as long as the process is serving requests
// @Summary Liveness check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Alive"
// @Router /system/health/live [get]
func (s *APIServer) getLiveness(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func runtimeStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc_mb": m.Alloc / 1024 / 1024,
			"sys_mb":   m.Sys / 1024 / 1024,
			"gc_count": m.NumGC,
		},
	}
}

// Start starts the API server and blocks until it stops
func (s *APIServer) Start() error {
	s.logger.Infof("Starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Router returns the HTTP router for testing
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting requests and then closes the background system
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Infof("Shutting down API server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	if err := s.system.Close(ctx); err != nil {
		s.logger.Warnf("Background system did not close cleanly: %v", err)
		return err
	}
	return nil
}
