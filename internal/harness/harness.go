package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/regress/internal/corpus"
	"github.com/roach88/regress/internal/evaluator"
	"github.com/roach88/regress/internal/golden"
	"github.com/roach88/regress/internal/normalize"
	"github.com/roach88/regress/internal/report"
)

// SessionPolicy selects how evaluator sessions map to tests.
type SessionPolicy string

const (
	// PerTest creates a fresh session for every test.
	PerTest SessionPolicy = "per_test"

	// Shared creates one session for the whole run. Facts installed by one
	// test are visible to later tests.
	Shared SessionPolicy = "shared"
)

// TrailingPolicy selects what happens to program text after the last dump.
type TrailingPolicy string

const (
	// TrailingWarn logs the uninstalled text and runs the test.
	TrailingWarn TrailingPolicy = "warn"

	// TrailingError fails the test with a corpus error.
	TrailingError TrailingPolicy = "error"
)

// Options configure a run.
type Options struct {
	InputDir    string
	ExpectedDir string
	OutputDir   string
	DiffFile    string

	Session  SessionPolicy
	Port     int
	Timeout  time.Duration
	Trailing TrailingPolicy

	// Preamble files are installed into every new session before any test
	// program.
	Preamble []string

	Filter corpus.Filter

	// Update rewrites golden files with the actual output.
	Update bool
}

// Validate checks option values the runner cannot default.
func (o Options) Validate() error {
	switch o.Session {
	case "", PerTest, Shared:
	default:
		return fmt.Errorf("invalid session policy %q (must be %s or %s)", o.Session, PerTest, Shared)
	}
	switch o.Trailing {
	case "", TrailingWarn, TrailingError:
	default:
		return fmt.Errorf("invalid trailing policy %q (must be %s or %s)", o.Trailing, TrailingWarn, TrailingError)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if o.InputDir == "" || o.ExpectedDir == "" || o.OutputDir == "" || o.DiffFile == "" {
		return fmt.Errorf("input, expected, output and diff file paths are required")
	}
	// The output directory is cleared at the start of a run.
	if diffDir, err := filepath.Abs(filepath.Dir(o.DiffFile)); err == nil {
		if outDir, err := filepath.Abs(o.OutputDir); err == nil && diffDir == outDir {
			return fmt.Errorf("diff file %s must not be inside the output directory", o.DiffFile)
		}
	}
	return nil
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable run IDs.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// History records runs and their results. Implemented by store.Store.
type History interface {
	BeginRun(ctx context.Context, run report.RunInfo) error
	RecordResult(ctx context.Context, runID string, seq int, res report.ComparisonResult) error
	FinishRun(ctx context.Context, summary report.Summary) error
}

// Runner drives a regression run.
//
// A run moves through Init, Discover, then Parse, Install/Query, Normalize and
// Compare for each test, then Aggregate and Report. Tests run strictly in
// discovery order on the calling goroutine.
type Runner struct {
	opts     Options
	eval     evaluator.Evaluator
	golden   *golden.Dir
	executor *Executor
	ids      IDGenerator
	history  History
	progress io.Writer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIDGenerator sets the run ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) { r.ids = g }
}

// WithHistory records the run in h.
func WithHistory(h History) Option {
	return func(r *Runner) { r.history = h }
}

// WithProgress prints one line per finished test to w.
func WithProgress(w io.Writer) Option {
	return func(r *Runner) { r.progress = w }
}

// WithClock sets the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner for ev.
func NewRunner(opts Options, ev evaluator.Evaluator, options ...Option) *Runner {
	if opts.Session == "" {
		opts.Session = PerTest
	}
	if opts.Trailing == "" {
		opts.Trailing = TrailingWarn
	}
	r := &Runner{
		opts:   opts,
		eval:   ev,
		golden: golden.NewDir(opts.ExpectedDir),
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, o := range options {
		o(r)
	}
	r.executor = NewExecutor(r.logger)
	return r
}

// Run executes the selected tests and returns the aggregated summary.
//
// Per-test failures are recorded in the summary and never stop the run. A
// returned error is run-level: the configuration is invalid, the input or
// output directory is unusable, or the diff artifact cannot be written. The
// summary is still returned with whatever was aggregated before the abort.
func (r *Runner) Run(ctx context.Context) (report.Summary, error) {
	// Init
	if err := r.opts.Validate(); err != nil {
		return report.Summary{}, NewCorpusError("", "invalid options", err)
	}

	runID := r.ids.Generate()
	logger := r.logger.With("run_id", runID, "engine", r.eval.Name())

	// Truncate the artifact first so an aborted run never leaves the previous
	// run's diffs looking current.
	reporter := report.NewReporter(r.opts.DiffFile)
	if err := reporter.Begin(runID); err != nil {
		return report.Summary{RunID: runID}, NewReportIOError("begin diff artifact", err)
	}

	if r.opts.Filter.Selective() {
		if err := corpus.EnsureOutput(r.opts.OutputDir); err != nil {
			reporter.Close()
			return reporter.Summary(), NewCorpusError("", "output directory", err)
		}
	} else if err := corpus.PrepareOutput(r.opts.OutputDir); err != nil {
		reporter.Close()
		return reporter.Summary(), NewCorpusError("", "output directory", err)
	}

	// Discover
	names, err := corpus.Discover(r.opts.InputDir, r.opts.Filter)
	if err != nil {
		reporter.Close()
		return reporter.Summary(), NewCorpusError("", "discover tests", err)
	}
	logger.Info("run started", "tests", len(names), "session", r.opts.Session)

	history := r.history
	if history != nil {
		info := report.RunInfo{
			ID:        runID,
			Engine:    r.eval.Name(),
			Session:   string(r.opts.Session),
			Filter:    filterLabel(r.opts.Filter),
			Update:    r.opts.Update,
			StartedAt: r.now(),
		}
		if err := history.BeginRun(ctx, info); err != nil {
			logger.Warn("history disabled for this run", "error", err)
			history = nil
		}
	}

	var shared evaluator.Session
	var sharedErr error
	if r.opts.Session == Shared {
		shared, sharedErr = r.openSession(ctx)
		if sharedErr != nil {
			logger.Error("shared session unavailable", "error", sharedErr)
		} else {
			defer r.closeSession(shared, logger)
		}
	}

	for i, name := range names {
		var res report.ComparisonResult
		if sharedErr != nil {
			res = failure(NewEngineError(name, "shared session unavailable", sharedErr))
		} else {
			res = r.runTest(ctx, name, shared, logger)
		}

		// Aggregate
		if err := reporter.Record(res); err != nil {
			reporter.Close()
			return reporter.Summary(), NewReportIOError("record result", err)
		}
		if r.progress != nil {
			report.WriteResult(r.progress, res)
		}
		if history != nil {
			if err := history.RecordResult(ctx, runID, i+1, res); err != nil {
				logger.Warn("failed to record result", "test", name, "error", err)
			}
		}
	}

	// Report
	if err := reporter.Close(); err != nil {
		return reporter.Summary(), NewReportIOError("close diff artifact", err)
	}
	summary := reporter.Summary()

	if history != nil {
		if err := history.FinishRun(ctx, summary); err != nil {
			logger.Warn("failed to finish history run", "error", err)
		}
	}

	logger.Info("run finished",
		"status", summary.Status(),
		"passed", summary.Passed,
		"failed", summary.Failed,
		"total", summary.Total,
	)
	return summary, nil
}

// runTest runs one test to a result. Every error is converted into a failed
// result for this test.
func (r *Runner) runTest(ctx context.Context, name string, shared evaluator.Session, logger *slog.Logger) report.ComparisonResult {
	logger = logger.With("test", name)

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	// Parse
	tc, err := corpus.Load(r.opts.InputDir, name)
	if err != nil {
		return failure(NewCorpusError(name, "load test", err))
	}
	if tc.Program.HasTrailing() {
		if r.opts.Trailing == TrailingError {
			return failure(NewCorpusError(name,
				fmt.Sprintf("program text from line %d follows the last dump and is never installed", tc.Program.TrailingLine), nil))
		}
		logger.Warn("program text after the last dump is never installed", "line", tc.Program.TrailingLine)
	}

	// Install/Query
	session := shared
	if session == nil {
		session, err = r.openSession(ctx)
		if err != nil {
			return failure(NewEngineError(name, "create session", err))
		}
		defer r.closeSession(session, logger)
	}

	captured, err := r.executor.Execute(ctx, session, tc.Program)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failure(NewEngineError(name, fmt.Sprintf("timed out after %s", r.opts.Timeout), err))
		}
		return failure(NewEngineError(name, "execute", err))
	}
	logger.Debug("test executed", "dumps", len(captured.Segments))

	// Normalize
	actual := normalize.Text(captured.Text())
	if err := corpus.WriteOutput(r.opts.OutputDir, name, fileText(actual)); err != nil {
		return failure(NewCorpusError(name, "write output", err))
	}

	if r.opts.Update {
		if err := r.golden.Update(name, fileText(actual)); err != nil {
			return failure(NewCorpusError(name, "update golden file", err))
		}
		logger.Info("golden file updated")
		return report.ComparisonResult{Name: name, Passed: true, Updated: true}
	}

	// Compare
	expected, err := r.golden.Load(name)
	if err != nil {
		return failure(NewCorpusError(name, "load golden file", err))
	}
	res := report.Compare(name, expected, actual)
	if !res.Passed {
		logger.Debug("output differs from golden file", "captured", captured.Labeled())
	}
	return res
}

// openSession creates a session and installs the preamble. A session whose
// preamble fails is destroyed before returning.
func (r *Runner) openSession(ctx context.Context) (evaluator.Session, error) {
	s, err := r.eval.Create(ctx, r.opts.Port)
	if err != nil {
		return nil, err
	}
	for _, path := range r.opts.Preamble {
		if err := s.InstallFile(ctx, path); err != nil {
			if derr := s.Destroy(); derr != nil {
				r.logger.Warn("failed to destroy session", "error", derr)
			}
			return nil, fmt.Errorf("preamble %s: %w", path, err)
		}
	}
	return s, nil
}

func (r *Runner) closeSession(s evaluator.Session, logger *slog.Logger) {
	if err := s.Destroy(); err != nil {
		logger.Warn("failed to destroy session", "error", err)
	}
}

// failure converts a per-test error into a failed result. The kind is carried
// by the result, so the recorded error is the cause alone.
func failure(err *Error) report.ComparisonResult {
	return report.Failure(err.Test, string(err.Kind), err.Cause())
}

// fileText terminates non-empty normalized output with a newline for storage.
func fileText(normalized string) string {
	if normalized == "" || strings.HasSuffix(normalized, "\n") {
		return normalized
	}
	return normalized + "\n"
}

func filterLabel(f corpus.Filter) string {
	switch {
	case f.Name != "":
		return f.Name
	case f.Match != "":
		return f.Match
	default:
		return ""
	}
}
