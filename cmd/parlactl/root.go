// Package main implements parlactl, the maintenance CLI for a Parla Core
// store: inspect the history ledger, adjust sync state and read metrics.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parlavoice/core/internal/config"
	"github.com/parlavoice/core/internal/db"
	"github.com/parlavoice/core/internal/history"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for parlactl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "parlactl",
		Short: "Maintenance tooling for a Parla Core store",
		Long: `parlactl inspects and maintains a Parla Core data directory:
list or dump the history ledger, mark the sync status of a record,
and read the desktop host's metrics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data", "", "data directory holding the store")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewMarkCommand(opts))
	cmd.AddCommand(NewMetricsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves the effective configuration for a command.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	return cfg, nil
}

// openLedger opens the store without change capture and returns its
// history ledger. The caller owns the database handle.
func openLedger(opts *RootOptions) (*db.DB, *history.Ledger, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(cfg.DataDir, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := db.NewMigrator(database.DB).Up(); err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, history.NewLedger(database.DB), nil
}
