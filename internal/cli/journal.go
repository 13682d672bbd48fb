package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rosie/internal/journal"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Engine string
	Op     string
	ID     string
	Limit  int
	Verify bool
}

// JournalResult holds the journal command output.
type JournalResult struct {
	Entries  []journal.Entry `json:"entries"`
	Verified bool            `json:"verified,omitempty"`
	Tampered []int64         `json:"tampered,omitempty"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recorded boundary calls",
		Long: `List the calls recorded in a journal, oldest first.

The journal is chosen with --journal or ROSIE_JOURNAL. With --id, only the
entry with that content-addressed id is shown. With --verify, every entry id
is recomputed from its content and mismatches are reported.

Examples:
  rosie journal --journal ./calls.db
  rosie journal --journal ./calls.db --op match --limit 20
  rosie journal --journal ./calls.db --id 5f0c...
  rosie journal --journal ./calls.db --verify --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Engine, "engine", "", "only calls on this engine id")
	cmd.Flags().StringVar(&opts.Op, "op", "", "only calls of this op")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show the single entry with this id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 means all)")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "recompute entry ids")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	path := opts.Settings.Journal
	if path == "" {
		return NewExitError(ExitCommandError, "no journal configured (use --journal or ROSIE_JOURNAL)")
	}

	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	entries, err := readEntries(ctx, j, opts)
	if err != nil {
		return err
	}

	result := JournalResult{Entries: entries}
	if opts.Verify {
		bad, err := j.Verify(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to verify journal", err)
		}
		result.Verified = len(bad) == 0
		result.Tampered = bad
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, e := range entries {
			status := "true"
			if !e.Status {
				status = "false"
			}
			fmt.Fprintf(w, "%4d  %-13s %-5s %-20s items=%d bytes=%d", e.Seq, e.Op, status, e.EngineID, e.Items, e.Bytes)
			if e.Detail != "" {
				fmt.Fprintf(w, "  %s", e.Detail)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%d entries\n", len(entries))
		if opts.Verify && result.Verified {
			fmt.Fprintln(w, "✓ all entry ids verified")
		}
	}

	if opts.Verify && !result.Verified {
		if f.Format != "json" {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ entries with mismatched ids: %v\n", result.Tampered)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d journal entries failed verification", len(result.Tampered)))
	}
	return nil
}

func readEntries(ctx context.Context, j *journal.Journal, opts *JournalOptions) ([]journal.Entry, error) {
	if opts.ID != "" {
		e, err := j.Entry(ctx, opts.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewExitError(ExitFailure, fmt.Sprintf("no journal entry %s", opts.ID))
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		return []journal.Entry{e}, nil
	}
	entries, err := j.Entries(ctx, journal.Filter{EngineID: opts.Engine, Op: opts.Op, Limit: opts.Limit})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	return entries, nil
}
