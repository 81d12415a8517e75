// Package harness runs golden-file regression tests against a Datalog
// evaluator.
//
// A test file interleaves program text with \dump commands. The Executor
// installs each program fragment into an evaluator session and captures the
// output of every dump in order. The Runner drives a whole corpus: it clears
// the output directory, discovers tests, executes each one, normalizes and
// stores the actual output, compares it against the golden file and records
// the result with a report.Reporter.
//
// # Isolation
//
// Errors are scoped to the test that raised them. A missing golden file or a
// failed engine call fails that test with a descriptive diff entry and the run
// continues. Only errors that prevent results from being recorded abort the
// run:
//
//   - invalid options
//   - an unusable input or output directory
//   - a diff artifact that cannot be written
//
// # Sessions
//
// With the per_test policy (the default) every test gets a fresh session that
// is destroyed on every exit path, so facts never leak between tests. With the
// shared policy a single session serves the whole run and tests observe the
// facts of earlier tests.
//
// Example:
//
//	r := harness.NewRunner(harness.Options{
//	    InputDir:    "input",
//	    ExpectedDir: "expected",
//	    OutputDir:   "output",
//	    DiffFile:    "regress.diffs",
//	}, mangle.New())
//	summary, err := r.Run(ctx)
package harness
