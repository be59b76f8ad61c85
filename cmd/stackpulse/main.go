package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackpulse/stackpulse/internal/config"
)

var (
	version = "dev"
	commit  = "none"    //nolint:gochecknoglobals // Build-time commit info
	date    = "unknown" //nolint:gochecknoglobals // Build-time date info

	// Global debug flag
	debugMode bool //nolint:gochecknoglobals // CLI global flag
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackpulse",
		Short: "Deployment status, liveness and metrics tracking",
		Long: `StackPulse tracks multi-service deployments (frontend, backend, database),
probes their liveness and derives health and trend signals from recorded metrics.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			config.AppVersion = version
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging and request logs")

	rootCmd.AddCommand(
		newServerCommand(),
		newConfigCommand(),
		newProbeCommand(),
	)
	return rootCmd
}

// loadStandardConfig loads defaults, the optional config file and the
// environment, then applies the global debug flag
func loadStandardConfig() (*config.ServerConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if debugMode {
		cfg.Debug = true
	}
	return cfg, nil
}
