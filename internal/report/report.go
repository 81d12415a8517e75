// Package report compares actual output against golden output and aggregates
// the results of a regression run.
//
// Comparison normalizes both sides itself, so callers cannot compare
// normalized text against raw text by accident. Mismatches carry a unified
// diff whose headers name the expected file and the actual output file.
//
// A Reporter owns the run's cumulative diff artifact: it is truncated when
// the run begins and receives the diff text of every failing test.
package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/roach88/regress/internal/normalize"
)

// Diff header prefixes identifying the two sides of a comparison.
const (
	ExpectedPrefix = "expected/"
	ActualPrefix   = "output/"
)

// diffContext is the number of unchanged lines shown around each hunk.
const diffContext = 3

// ComparisonResult is the outcome of one test.
type ComparisonResult struct {
	Name   string
	Passed bool

	// Diff is empty for passing tests. For mismatches it is a unified diff;
	// for errors it describes the error.
	Diff string

	// Kind classifies an error outcome ("" for a clean comparison).
	Kind string

	// Err is the error that failed the test, if any.
	Err error

	// Updated is set when update mode rewrote the golden file.
	Updated bool
}

// Compare normalizes expected and actual and compares them exactly.
func Compare(name, expected, actual string) ComparisonResult {
	exp := normalize.Text(expected)
	act := normalize.Text(actual)
	if exp == act {
		return ComparisonResult{Name: name, Passed: true}
	}
	return ComparisonResult{
		Name: name,
		Diff: UnifiedDiff(name, exp, act),
	}
}

// Failure builds a failed result for a test that could not be compared.
func Failure(name, kind string, err error) ComparisonResult {
	return ComparisonResult{
		Name: name,
		Kind: kind,
		Err:  err,
		Diff: fmt.Sprintf("*** %s: %s\n%v\n", name, kind, err),
	}
}

// UnifiedDiff renders a line diff between expected and actual text.
func UnifiedDiff(name, expected, actual string) string {
	diff := difflib.UnifiedDiff{
		A:        splitLines(expected),
		B:        splitLines(actual),
		FromFile: ExpectedPrefix + name,
		ToFile:   ActualPrefix + name,
		Context:  diffContext,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		// difflib only fails when writing to its buffer.
		return fmt.Sprintf("*** %s: diff unavailable: %v\n", name, err)
	}
	return text
}

// splitLines splits text into newline-terminated lines for difflib.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return difflib.SplitLines(text)
}

// Summary aggregates the results of a run.
type Summary struct {
	RunID    string
	DiffFile string

	Total   int
	Passed  int
	Failed  int
	Failing []string
	Results []ComparisonResult
}

// Add records one result.
func (s *Summary) Add(r ComparisonResult) {
	s.Total++
	s.Results = append(s.Results, r)
	if r.Passed {
		s.Passed++
		return
	}
	s.Failed++
	s.Failing = append(s.Failing, r.Name)
}

// SomeFailed reports whether the run ended in the SomeFailed state.
func (s *Summary) SomeFailed() bool {
	return s.Failed > 0
}

// Status returns "passed" or "failed".
func (s *Summary) Status() string {
	if s.SomeFailed() {
		return "failed"
	}
	return "passed"
}

// Reporter aggregates results and writes the diff artifact.
type Reporter struct {
	path    string
	file    *os.File
	summary Summary
}

// NewReporter creates a reporter writing failures to path.
func NewReporter(path string) *Reporter {
	return &Reporter{path: path, summary: Summary{DiffFile: path}}
}

// Begin truncates the diff artifact. Diffs never carry over between runs.
func (r *Reporter) Begin(runID string) error {
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to create diff file: %w", err)
	}
	r.file = f
	r.summary = Summary{RunID: runID, DiffFile: r.path}
	return nil
}

// Record adds a result and appends its diff to the artifact if it failed.
func (r *Reporter) Record(res ComparisonResult) error {
	r.summary.Add(res)
	if res.Passed || res.Diff == "" {
		return nil
	}
	if r.file == nil {
		return fmt.Errorf("diff file not open")
	}
	diff := res.Diff
	if !strings.HasSuffix(diff, "\n") {
		diff += "\n"
	}
	if _, err := r.file.WriteString(diff); err != nil {
		return fmt.Errorf("failed to write diff file: %w", err)
	}
	return nil
}

// Summary returns the aggregate so far.
func (r *Reporter) Summary() Summary {
	return r.summary
}

// Close flushes and closes the diff artifact.
func (r *Reporter) Close() error {
	if r.file == nil {
		return nil
	}
	f := r.file
	r.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync diff file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close diff file: %w", err)
	}
	return nil
}

// RunInfo describes a run for the history ledger.
type RunInfo struct {
	ID        string
	Engine    string
	Session   string
	Filter    string
	Update    bool
	StartedAt time.Time
}
