// Package mangle binds the evaluator capabilities to the Google Mangle
// Datalog engine running in-process.
//
// Installing a program parses it as a Mangle source unit, merges it with
// every unit installed before, re-analyzes the merged program and evaluates
// it to a fixed point into a fresh in-memory fact store. The store replaces
// the session's only when evaluation succeeds, so a failed install leaves the
// session as it was and negated atoms always see the current program. Dumping a table lists the facts of every predicate with
// that name, one "atom." per line, in store order.
package mangle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/roach88/regress/internal/evaluator"
)

// EngineName identifies this binding in configuration and reports.
const EngineName = "mangle"

// inlineTarget labels installs of program text in errors.
const inlineTarget = "<program>"

// MaxPort is the largest valid session port.
const MaxPort = 65535

// ErrUnknownTable is wrapped by dump errors for tables the session has never seen.
var ErrUnknownTable = errors.New("unknown table")

// runtime is shared by every Evaluator in the process. Mangle has no global
// state to set up, so the guard only counts live sessions.
var runtime = &evaluator.Lifecycle{}

// Evaluator creates Mangle sessions.
type Evaluator struct {
	life *evaluator.Lifecycle
}

// New returns an Evaluator using the process-wide lifecycle guard.
func New() *Evaluator {
	return &Evaluator{life: runtime}
}

// NewWithLifecycle returns an Evaluator using the given lifecycle guard.
func NewWithLifecycle(l *evaluator.Lifecycle) *Evaluator {
	return &Evaluator{life: l}
}

// Name implements evaluator.Evaluator.
func (e *Evaluator) Name() string {
	return EngineName
}

// Create implements evaluator.Evaluator.
//
// Mangle runs in-process, so the port is validated and recorded but nothing
// listens on it.
func (e *Evaluator) Create(ctx context.Context, port int) (evaluator.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, evaluator.NewEngineError(evaluator.OpCreate, "", err)
	}
	if port < 0 || port > MaxPort {
		return nil, evaluator.NewEngineError(evaluator.OpCreate, "",
			fmt.Errorf("port %d out of range 0..%d", port, MaxPort))
	}
	if err := e.life.Acquire(); err != nil {
		return nil, evaluator.NewEngineError(evaluator.OpCreate, "", err)
	}

	return &Session{
		life:  e.life,
		port:  port,
		store: factstore.NewSimpleInMemoryStore(),
	}, nil
}

// Session is one Mangle program accumulating installed units.
type Session struct {
	life  *evaluator.Lifecycle
	port  int
	store factstore.FactStore

	units       []parse.SourceUnit
	programInfo *analysis.ProgramInfo
	destroyed   bool
}

// Port returns the port the session was created with.
func (s *Session) Port() int {
	return s.port
}

// InstallProgram implements evaluator.Session.
func (s *Session) InstallProgram(ctx context.Context, text string) error {
	return s.install(ctx, inlineTarget, text)
}

// InstallFile implements evaluator.Session.
func (s *Session) InstallFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return evaluator.NewEngineError(evaluator.OpInstall, path, err)
	}
	return s.install(ctx, path, string(data))
}

func (s *Session) install(ctx context.Context, target, text string) error {
	if err := s.check(ctx); err != nil {
		return evaluator.NewEngineError(evaluator.OpInstall, target, err)
	}

	unit, err := parse.Unit(strings.NewReader(text))
	if err != nil {
		return evaluator.NewEngineError(evaluator.OpInstall, target, fmt.Errorf("parse: %w", err))
	}

	units := append(append([]parse.SourceUnit(nil), s.units...), unit)
	programInfo, err := analysis.AnalyzeOneUnit(mergeUnits(units), nil)
	if err != nil {
		return evaluator.NewEngineError(evaluator.OpInstall, target, fmt.Errorf("analyze: %w", err))
	}

	// Facts derived under the previous program may no longer hold once a
	// negated predicate gains facts, so evaluation starts from empty.
	store := factstore.NewSimpleInMemoryStore()
	if _, err := mengine.EvalProgramWithStats(programInfo, store); err != nil {
		return evaluator.NewEngineError(evaluator.OpInstall, target, fmt.Errorf("evaluate: %w", err))
	}

	s.store = store
	s.units = units
	s.programInfo = programInfo
	return nil
}

// DumpTable implements evaluator.Session.
func (s *Session) DumpTable(ctx context.Context, name string) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", evaluator.NewEngineError(evaluator.OpDump, name, err)
	}

	syms := s.predicates(name)
	if len(syms) == 0 {
		return "", evaluator.NewEngineError(evaluator.OpDump, name, ErrUnknownTable)
	}

	var b strings.Builder
	for _, sym := range syms {
		err := s.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
			b.WriteString(atom.String())
			b.WriteString(".\n")
			return nil
		})
		if err != nil {
			return "", evaluator.NewEngineError(evaluator.OpDump, name, err)
		}
	}
	return b.String(), nil
}

// Destroy implements evaluator.Session.
func (s *Session) Destroy() error {
	if s.destroyed {
		return evaluator.NewEngineError(evaluator.OpDestroy, "", evaluator.ErrDestroyed)
	}
	s.destroyed = true
	s.units = nil
	s.programInfo = nil
	s.store = nil
	if err := s.life.Release(); err != nil {
		return evaluator.NewEngineError(evaluator.OpDestroy, "", err)
	}
	return nil
}

func (s *Session) check(ctx context.Context) error {
	if s.destroyed {
		return evaluator.ErrDestroyed
	}
	return ctx.Err()
}

// predicates returns every predicate named name, declared or stored,
// ordered by arity.
func (s *Session) predicates(name string) []ast.PredicateSym {
	seen := make(map[ast.PredicateSym]bool)
	var syms []ast.PredicateSym
	add := func(sym ast.PredicateSym) {
		if sym.Symbol == name && !seen[sym] {
			seen[sym] = true
			syms = append(syms, sym)
		}
	}

	if s.programInfo != nil {
		for sym := range s.programInfo.Decls {
			add(sym)
		}
	}
	for _, sym := range s.store.ListPredicates() {
		add(sym)
	}

	sort.Slice(syms, func(i, j int) bool { return syms[i].Arity < syms[j].Arity })
	return syms
}

// mergeUnits concatenates the clauses and declarations of installed units
// into one program.
func mergeUnits(units []parse.SourceUnit) parse.SourceUnit {
	var clauses []ast.Clause
	var decls []ast.Decl
	for _, u := range units {
		clauses = append(clauses, u.Clauses...)
		decls = append(decls, u.Decls...)
	}
	return parse.SourceUnit{
		Clauses: clauses,
		Decls:   decls,
	}
}
