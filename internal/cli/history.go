package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/regress/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Test     string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show runs recorded with --history.

Without arguments, lists recent runs. With a run ID, lists that run's
results in execution order. With --test, lists one test's results
across runs.

Examples:
  regress history --db regress.db
  regress history --db regress.db 0190a5c2-...
  regress history --db regress.db --test transitive_closure`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "history database path (required)")
	cmd.Flags().StringVar(&opts.Test, "test", "", "show one test's results across runs")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum rows to show (0 for all)")
	cmd.MarkFlagRequired("db")

	return cmd
}

func showHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	// Open would create a missing database; history only reads.
	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ErrCodeNotFound, "history database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ErrCodeHistory, "failed to open history", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case len(args) == 1:
		return showRun(ctx, cmd, formatter, st, args[0])
	case opts.Test != "":
		results, err := st.TestHistory(ctx, opts.Test, opts.Limit)
		if err != nil {
			return formatter.Fail(ErrCodeHistory, "failed to read history", err)
		}
		if opts.Format == "json" {
			return formatter.Success(results)
		}
		writeResults(cmd, results, true)
		return nil
	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return formatter.Fail(ErrCodeHistory, "failed to read history", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		writeRuns(cmd, runs)
		return nil
	}
}

func showRun(ctx context.Context, cmd *cobra.Command, formatter *OutputFormatter, st *store.Store, id string) error {
	run, err := st.GetRun(ctx, id)
	if err != nil {
		code := ErrCodeHistory
		if errors.Is(err, store.ErrRunNotFound) {
			code = ErrCodeNotFound
		}
		return formatter.Fail(code, "failed to read run", err)
	}
	results, err := st.RunResults(ctx, id)
	if err != nil {
		return formatter.Fail(ErrCodeHistory, "failed to read run", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"run":     run,
			"results": results,
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (%s, %s session)\n", run.ID, run.Engine, run.Session)
	fmt.Fprintf(w, "Started: %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Status:  %s, %d passed, %d failed, %d total\n\n", run.Status, run.Passed, run.Failed, run.Total)
	writeResults(cmd, results, false)
	return nil
}

func writeRuns(cmd *cobra.Command, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tPASSED\tFAILED\tTOTAL\tFILTER")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Status, r.Passed, r.Failed, r.Total, r.Filter)
	}
	tw.Flush()
}

func writeResults(cmd *cobra.Command, results []store.Result, withRun bool) {
	w := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(w, "No results recorded.")
		return
	}
	for _, r := range results {
		mark := "✓"
		if !r.Passed {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %s", mark, r.Name)
		if withRun {
			line = fmt.Sprintf("%s %s", mark, r.RunID)
		}
		if r.Kind != "" {
			line += fmt.Sprintf("  %s: %s", r.Kind, r.Error)
		}
		fmt.Fprintln(w, line)
	}
}
