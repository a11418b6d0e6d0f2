package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/parlavoice/core/internal/models"
)

// NewMarkCommand creates the mark command.
func NewMarkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <record-id> <pending|sent|confirmed|failed>",
		Short: "Set the sync status of a history record",
		Long: `Set the sync status of one history record. This counts as a
delivery attempt: the record's try counter is incremented.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid record id %q: %w", args[0], err)
			}
			status, err := parseSyncStatus(args[1])
			if err != nil {
				return err
			}

			database, ledger, err := openLedger(rootOpts)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := ledger.MarkAttempted(recordID, status); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "record %d marked %s\n", recordID, args[1])
			return nil
		},
	}
}

func parseSyncStatus(s string) (int64, error) {
	switch s {
	case "pending":
		return models.SyncPending, nil
	case "sent":
		return models.SyncSent, nil
	case "confirmed":
		return models.SyncConfirmed, nil
	case "failed":
		return models.SyncFailed, nil
	default:
		return 0, fmt.Errorf("invalid status %q: must be pending, sent, confirmed or failed", s)
	}
}
