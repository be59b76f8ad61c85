//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/probe"
)

func newProbeCommand() *cobra.Command {
	var (
		service string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe [url]",
		Short: "Run a single liveness probe against a service URL",
		Long: `Probe issues one bounded liveness check the way the scheduler does.
Backend URLs get the configured health path appended.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := interfaces.ServiceName(service)
			if !name.Valid() {
				return fmt.Errorf("unknown service %q: must be frontend, backend or database", service)
			}

			cfg, err := loadStandardConfig()
			if err != nil {
				return err
			}
			p := probe.New(probe.WithTimeout(timeout), probe.WithHealthPath(cfg.Probe.HealthPath))
			ep := p.EndpointFor(name, args[0])

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			result := p.Probe(ctx, ep, timeout)

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s (%d ms)\n",
				result.Service, ep.URL, result.Status, result.ResponseTimeMillis)
			return err
		},
	}

	cmd.Flags().StringVarP(&service, "service", "s", string(interfaces.ServiceFrontend), "Service kind (frontend, backend, database)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", probe.DefaultTimeout, "Probe timeout")
	return cmd
}
