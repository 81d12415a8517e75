// Package evaluator defines the capabilities the regression harness needs from
// an evaluation engine.
//
// The harness treats the engine as opaque. It creates a session, installs
// program text (or files) into it, asks it to dump named tables as text, and
// destroys it. What the installed program means is up to the engine.
//
// Engine bindings live in subpackages (see evaluator/mangle).
package evaluator

import (
	"context"
	"errors"
	"fmt"
)

// Evaluator creates engine sessions.
type Evaluator interface {
	// Name identifies the engine binding in logs and reports.
	Name() string

	// Create starts a new session. A port of 0 means the engine should not
	// listen on the network.
	Create(ctx context.Context, port int) (Session, error)
}

// Session is a handle to engine-side state. Installed programs accumulate
// until the session is destroyed.
//
// Sessions are not safe for concurrent use; the harness drives them from a
// single goroutine.
type Session interface {
	// InstallProgram installs program text.
	InstallProgram(ctx context.Context, text string) error

	// InstallFile installs the program stored at path.
	InstallFile(ctx context.Context, path string) error

	// DumpTable returns the current contents of the named table as text.
	DumpTable(ctx context.Context, name string) (string, error)

	// Destroy releases the session. It must be called exactly once for each
	// successful Create.
	Destroy() error
}

// Operation names used in EngineError.
const (
	OpCreate  = "create"
	OpInstall = "install"
	OpDump    = "dump"
	OpDestroy = "destroy"
)

// ErrDestroyed is returned by session operations after Destroy.
var ErrDestroyed = errors.New("session destroyed")

// EngineError reports a failed engine capability call.
type EngineError struct {
	// Op is the capability that failed (OpInstall, OpDump, ...).
	Op string

	// Target names what the call operated on: a table, a file path, or
	// "<program>" for inline text.
	Target string

	// Err is the engine's underlying error.
	Err error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("engine %s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying engine error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates an EngineError for the given operation.
func NewEngineError(op, target string, err error) *EngineError {
	return &EngineError{Op: op, Target: target, Err: err}
}

// IsEngineError reports whether err is (or wraps) an EngineError.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}
