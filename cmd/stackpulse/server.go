//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackpulse/stackpulse/internal/apiserver"
	"github.com/stackpulse/stackpulse/internal/config"
	"github.com/stackpulse/stackpulse/internal/logging"
	"github.com/stackpulse/stackpulse/internal/system"
)

// ErrServerNotRunning is returned by status when the health endpoint cannot be reached
var ErrServerNotRunning = errors.New("server is not running")

func newServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run and inspect the StackPulse API server",
	}

	cmd.AddCommand(
		newServerStartCommand(),
		newServerStatusCommand(),
	)
	return cmd
}

func newServerStartCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the API server and the background probe scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadStandardConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServerForeground(cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Port to listen on")
	return cmd
}

func newServerStatusCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check API server health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				port = config.GetPort()
			}
			return checkServerStatus(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Port the server listens on")
	return cmd
}

func runServerForeground(cfg *config.ServerConfig) error {
	logger := logging.NewLogger("server")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Infof("Starting StackPulse server %s", version)
	logger.Infof("Configuration:")
	logger.Infof("  Port: %d", cfg.Port)
	logger.Infof("  Deployment Store: %s", cfg.DeploymentStore.Type)
	logger.Infof("  Metric Store: %s", cfg.MetricStore.Type)
	logger.Infof("  Scheduler: %s (%d workers)", cfg.Scheduler.Type, cfg.Scheduler.Workers)
	logger.Infof("  Probe Interval: %s", cfg.Probe.Interval)
	if cfg.Debug {
		logger.Debugf("Sanitized configuration: %s", cfg.ToJSON())
	}

	sys, err := system.NewBackgroundSystem(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create background system: %w", err)
	}

	server, err := apiserver.NewAPIServer(cfg, sys)
	if err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), apiserver.ShutdownTimeout)
		defer cancel()
		_ = sys.Close(closeCtx)
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := sys.Start(); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), apiserver.ShutdownTimeout)
		defer cancel()
		_ = sys.Close(closeCtx)
		return fmt.Errorf("failed to start background system: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case sig := <-sigChan:
		logger.Infof("Received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), apiserver.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	case err := <-errChan:
		ctx, cancel := context.WithTimeout(context.Background(), apiserver.ShutdownTimeout)
		defer cancel()
		_ = sys.Close(ctx)
		return err
	}
}

func checkServerStatus(ctx context.Context, port int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://localhost:%d%s", port, config.APIEndpointHealth)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w on port %d: %v", ErrServerNotRunning, port, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var health struct {
		Status     string `json:"status"`
		Uptime     string `json:"uptime"`
		Components map[string]struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}

	fmt.Printf("Server on port %d is %s (uptime %s)\n", port, health.Status, health.Uptime)
	for name, c := range health.Components {
		if c.Message != "" {
			fmt.Printf("  %-18s %s: %s\n", name, c.Status, c.Message)
			continue
		}
		fmt.Printf("  %-18s %s\n", name, c.Status)
	}
	return nil
}
