package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/regress/internal/config"
	"github.com/roach88/regress/internal/corpus"
	"github.com/roach88/regress/internal/evaluator/mangle"
	"github.com/roach88/regress/internal/harness"
	"github.com/roach88/regress/internal/logger"
	"github.com/roach88/regress/internal/report"
	"github.com/roach88/regress/internal/store"
)

// RunOptions holds flags for the run and watch commands.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	Input      string
	Expected   string
	Output     string
	DiffFile   string
	Session    string
	Trailing   string
	Port       int
	Timeout    time.Duration
	Preamble   []string
	Match      string
	Update     bool
	History    string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [test]",
		Short: "Run the regression corpus",
		Long: `Run every test in the input directory, or only the named test.

Each test's normalized output is written to the output directory and
compared against the golden file of the same name in the expected
directory. Diffs of failing tests are collected in the diff file.

Exit codes:
  0 - All tests passed
  1 - One or more tests failed
  2 - Command error (invalid flags, unusable directories, etc.)

Examples:
  regress run
  regress run transitive_closure
  regress run --match "join_*"
  regress run --update
  regress run --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorpus(cmd, opts, args)
		},
	}

	addRunFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.Update, "update", false, "write actual output as the new golden files")

	return cmd
}

// addRunFlags registers the flags shared by run and watch.
func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.ConfigPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	f.StringVar(&opts.Input, "input", "", "test program directory")
	f.StringVar(&opts.Expected, "expected", "", "golden file directory")
	f.StringVar(&opts.Output, "output", "", "actual output directory")
	f.StringVar(&opts.DiffFile, "diff-file", "", "cumulative diff file")
	f.StringVar(&opts.Session, "session", "", "session policy (per_test|shared)")
	f.StringVar(&opts.Trailing, "trailing", "", "program text after the last dump (warn|error)")
	f.IntVar(&opts.Port, "port", 0, "evaluator port")
	f.DurationVar(&opts.Timeout, "timeout", 0, "per-test timeout (0 for none)")
	f.StringSliceVar(&opts.Preamble, "preamble", nil, "program files installed into every session")
	f.StringVar(&opts.Match, "match", "", "only run tests whose name matches this glob")
	f.StringVar(&opts.History, "history", "", "record the run in this history database")
}

// loadConfig reads the config file and applies flags that were set.
func (o *RunOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.Load(o.ConfigPath)
	} else {
		cfg, err = config.LoadDefault(".")
	}
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	set := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	set("input", &cfg.Input, o.Input)
	set("expected", &cfg.Expected, o.Expected)
	set("output", &cfg.Output, o.Output)
	set("diff-file", &cfg.DiffFile, o.DiffFile)
	set("session", &cfg.Session, o.Session)
	set("trailing", &cfg.Trailing, o.Trailing)
	set("match", &cfg.Match, o.Match)
	set("history", &cfg.History, o.History)
	if flags.Changed("port") {
		cfg.Port = o.Port
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.Timeout
	}
	if flags.Changed("preamble") {
		cfg.Preamble = o.Preamble
	}

	if cfg.Port < 0 || cfg.Port > mangle.MaxPort {
		return config.Config{}, fmt.Errorf("port %d out of range 0..%d", cfg.Port, mangle.MaxPort)
	}
	return cfg, nil
}

// runnerSetup builds a runner from cfg. The returned close function releases
// the history store.
func runnerSetup(cfg config.Config, filter corpus.Filter, update bool, progress io.Writer, log *slog.Logger) (*harness.Runner, func(), error) {
	opts := cfg.Options()
	if filter.Name != "" {
		opts.Filter = filter
	}
	opts.Update = update

	runnerOpts := []harness.Option{harness.WithLogger(log)}
	if progress != nil {
		runnerOpts = append(runnerOpts, harness.WithProgress(progress))
	}

	closeFn := func() {}
	if cfg.History != "" {
		st, err := store.Open(cfg.History)
		if err != nil {
			return nil, nil, err
		}
		runnerOpts = append(runnerOpts, harness.WithHistory(st))
		closeFn = func() {
			if err := st.Close(); err != nil {
				log.Error("error closing history", "error", err)
			}
		}
	}

	return harness.NewRunner(opts, mangle.New(), runnerOpts...), closeFn, nil
}

func runCorpus(cmd *cobra.Command, opts *RunOptions, args []string) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	log := logger.New(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, "invalid configuration", err)
	}
	formatter.VerboseLog("input=%s expected=%s output=%s session=%s", cfg.Input, cfg.Expected, cfg.Output, cfg.Session)

	var filter corpus.Filter
	if len(args) == 1 {
		filter.Name = args[0]
	}

	var progress io.Writer
	if opts.Format != "json" {
		progress = cmd.OutOrStdout()
	}

	runner, closeFn, err := runnerSetup(cfg, filter, opts.Update, progress, log)
	if err != nil {
		return formatter.Fail(ErrCodeHistory, "failed to open history", err)
	}
	defer closeFn()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		return reportRunError(formatter, summary, err)
	}
	return reportSummary(cmd, formatter, summary)
}

// reportRunError reports a run-level abort. Always a command error.
func reportRunError(formatter *OutputFormatter, summary report.Summary, err error) error {
	code := string(harness.KindOf(err))

	if formatter.Format == "json" {
		formatter.Respond(CLIResponse{
			Status: "error",
			RunID:  summary.RunID,
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	} else {
		formatter.Error(code, err.Error(), nil)
	}
	return WrapExitError(ExitCommandError, "run aborted", err)
}

// reportSummary prints the summary and maps failures to ExitFailure.
func reportSummary(cmd *cobra.Command, formatter *OutputFormatter, summary report.Summary) error {
	if formatter.Format == "json" {
		resp := CLIResponse{
			Status: "ok",
			RunID:  summary.RunID,
			Data:   report.ToJSON(summary),
		}
		if summary.SomeFailed() {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeTestsFailed,
				Message: fmt.Sprintf("%d test(s) failed", summary.Failed),
			}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		report.WriteSummary(cmd.OutOrStdout(), summary)
	}

	if summary.SomeFailed() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d test(s) failed", summary.Failed))
	}
	return nil
}
