package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/regress/internal/directive"
	"github.com/roach88/regress/internal/evaluator"
)

// Executor feeds one parsed test into an evaluator session.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an executor. A nil logger discards output.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{logger: logger}
}

// Execute runs the fragments of p against s in file order.
//
// Program fragments are installed unless blank. Each dump command observes
// everything installed before it and its output is captured in issue order.
// The first failed install or dump stops the test; the returned error wraps
// the evaluator.EngineError. The context is checked before every fragment.
func (e *Executor) Execute(ctx context.Context, s evaluator.Session, p *directive.Program) (*Captured, error) {
	captured := NewCaptured()

	for _, f := range p.Fragments {
		if err := ctx.Err(); err != nil {
			return captured, fmt.Errorf("stopped before line %d: %w", f.Line, err)
		}

		switch f.Kind {
		case directive.KindProgram:
			if f.Blank() {
				continue
			}
			if err := s.InstallProgram(ctx, f.Text); err != nil {
				return captured, fmt.Errorf("install at line %d: %w", f.Line, err)
			}
			e.logger.Debug("program installed", "line", f.Line, "bytes", len(f.Text))

		case directive.KindCommand:
			text, err := s.DumpTable(ctx, f.Name)
			if err != nil {
				return captured, fmt.Errorf("dump %q at line %d: %w", f.Name, f.Line, err)
			}
			captured.Add(f.Name, text)
			e.logger.Debug("table dumped", "line", f.Line, "table", f.Name, "bytes", len(text))

		default:
			return captured, fmt.Errorf("unknown fragment kind %v at line %d", f.Kind, f.Line)
		}
	}

	return captured, nil
}
