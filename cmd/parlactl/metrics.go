package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// NewMetricsCommand creates the metrics command.
func NewMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the desktop host's metrics in text exposition format",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := addr
			if target == "" {
				cfg, err := loadConfig(rootOpts)
				if err != nil {
					return err
				}
				target = cfg.Desktop.MetricsAddr
			}
			if target == "" {
				return fmt.Errorf("no metrics address: pass --addr or set desktop.metrics_addr")
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get("http://" + target + "/metrics")
			if err != nil {
				return fmt.Errorf("failed to fetch metrics from %s: %w", target, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("metrics endpoint returned %s", resp.Status)
			}

			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "metrics address (host:port), defaults to desktop.metrics_addr")

	return cmd
}
