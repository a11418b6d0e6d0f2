package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/parlavoice/core/internal/models"
)

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the history ledger",
	}

	cmd.AddCommand(newHistoryListCommand(rootOpts))
	cmd.AddCommand(newHistoryDumpCommand(rootOpts))

	return cmd
}

func newHistoryListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		author  string
		afterID int64
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger records, optionally by author partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			if author != "" && author != models.AuthorLocal && author != models.AuthorSender {
				return fmt.Errorf("invalid author %q: must be %q or %q", author, models.AuthorLocal, models.AuthorSender)
			}

			database, ledger, err := openLedger(rootOpts)
			if err != nil {
				return err
			}
			defer database.Close()

			var records []models.HistoryRecord
			switch author {
			case models.AuthorLocal:
				// Local means not authored by the sender, so ad-hoc
				// authors show up here too.
				records, err = ledger.ListLocalAfterID(afterID, limit)
			case models.AuthorSender:
				records, err = ledger.ListAfterID(afterID, models.AuthorSender, limit)
			default:
				records, err = ledger.All()
				if err == nil {
					records = filterAfterID(records, afterID, limit)
				}
			}
			if err != nil {
				return err
			}

			return printRecords(cmd, rootOpts, records)
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "author partition (local|sender); local covers every non-sender author")
	cmd.Flags().Int64Var(&afterID, "after-id", 0, "only records with a larger id")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of records (0 = default)")

	return cmd
}

func newHistoryDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Dump the full ledger as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, ledger, err := openLedger(rootOpts)
			if err != nil {
				return err
			}
			defer database.Close()

			records, err := ledger.All()
			if err != nil {
				return err
			}
			if records == nil {
				records = []models.HistoryRecord{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
}

func filterAfterID(records []models.HistoryRecord, afterID int64, limit int) []models.HistoryRecord {
	out := make([]models.HistoryRecord, 0, len(records))
	for _, r := range records {
		if r.ID <= afterID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func printRecords(cmd *cobra.Command, opts *RootOptions, records []models.HistoryRecord) error {
	if opts.Format == "json" {
		if records == nil {
			records = []models.HistoryRecord{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENTITY\tENTITY_ID\tCHANGE\tAUTHOR\tSTATUS\tTRIES\tCREATED")
	for i := range records {
		r := &records[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.EntityName, r.EntityID, r.ChangeType, r.Author,
			syncStatusName(r.SyncStatus), r.TryCount,
			r.CreatedAtTime().UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func syncStatusName(status int64) string {
	switch status {
	case models.SyncPending:
		return "pending"
	case models.SyncSent:
		return "sent"
	case models.SyncConfirmed:
		return "confirmed"
	case models.SyncFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", status)
	}
}
