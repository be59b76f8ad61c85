//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stackpulse/stackpulse/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage StackPulse configuration",
		Long:  "View and validate the server configuration built from defaults, the HCL config file and environment variables",
	}

	cmd.AddCommand(
		newConfigShowCommand(),
		newConfigValidateCommand(),
	)
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadStandardConfig()
			if err != nil {
				return err
			}

			switch format {
			case "json":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), cfg.ToJSON())
				return err
			case "table":
				return displayConfigTable(cmd.OutOrStdout(), cfg)
			default:
				return fmt.Errorf("unknown format: %s. Supported formats: table, json", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadStandardConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			return err
		},
	}
}

func displayConfigTable(out io.Writer, cfg *config.ServerConfig) error {
	if out == nil {
		out = os.Stdout
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SETTING\tVALUE")
	_, _ = fmt.Fprintln(w, "-------\t-----")

	source := "defaults + environment"
	if cfg.ConfigFile != "" {
		source = cfg.ConfigFile + " + environment"
	}

	rows := [][2]string{
		{"source", source},
		{"port", fmt.Sprint(cfg.Port)},
		{"debug", fmt.Sprint(cfg.Debug)},
		{"deployment_store", cfg.DeploymentStore.Type},
		{"metric_store", cfg.MetricStore.Type},
		{"scheduler", cfg.Scheduler.Type},
		{"scheduler.workers", fmt.Sprint(cfg.Scheduler.Workers)},
		{"probe.timeout", cfg.Probe.Timeout.String()},
		{"probe.interval", cfg.Probe.Interval.String()},
		{"probe.health_path", cfg.Probe.HealthPath},
		{"retention.period", cfg.Retention.Period.String()},
		{"retention.sweep_interval", cfg.Retention.SweepInterval.String()},
		{"lockout.max_attempts", fmt.Sprint(cfg.Lockout.MaxAttempts)},
		{"lockout.lock_duration", cfg.Lockout.LockDuration.String()},
		{"archive.enabled", fmt.Sprint(cfg.Archive.Bucket != "")},
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	return w.Flush()
}
