package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/regress/internal/evaluator"
)

// ErrorKind categorizes harness errors.
//
// A mismatch between actual and golden output is not an error; it is a normal
// failed comparison.
type ErrorKind string

const (
	// KindCorpus covers missing or unreadable test and golden files and
	// output directory problems. Fatal for the affected test only.
	KindCorpus ErrorKind = "CORPUS_ERROR"

	// KindEngine covers failed create, install, or dump calls and per-test
	// timeouts. Fatal for the affected test only.
	KindEngine ErrorKind = "ENGINE_ERROR"

	// KindReportIO covers failures writing the diff artifact. Fatal for the
	// run, since results can no longer be communicated.
	KindReportIO ErrorKind = "REPORT_IO_ERROR"
)

// Error is a classified harness error.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Test names the affected test. Empty for run-level errors.
	Test string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Test != "" {
		return fmt.Sprintf("%s: %s (test=%s)", e.Kind, msg, e.Test)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause returns the error without its kind and test decoration.
func (e *Error) Cause() error {
	if e.Err == nil {
		return errors.New(e.Message)
	}
	return fmt.Errorf("%s: %w", e.Message, e.Err)
}

// NewCorpusError creates a KindCorpus error.
func NewCorpusError(test, message string, err error) *Error {
	return &Error{Kind: KindCorpus, Test: test, Message: message, Err: err}
}

// NewEngineError creates a KindEngine error.
func NewEngineError(test, message string, err error) *Error {
	return &Error{Kind: KindEngine, Test: test, Message: message, Err: err}
}

// NewReportIOError creates a KindReportIO error.
func NewReportIOError(message string, err error) *Error {
	return &Error{Kind: KindReportIO, Message: message, Err: err}
}

// KindOf classifies err. Unclassified engine and context errors count as
// KindEngine; anything else is KindCorpus.
func KindOf(err error) ErrorKind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	if evaluator.IsEngineError(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return KindEngine
	}
	return KindCorpus
}

// IsReportIOError reports whether err aborts the run because results could
// not be written.
func IsReportIOError(err error) bool {
	return KindOf(err) == KindReportIO
}
