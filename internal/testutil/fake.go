// Package testutil provides deterministic helpers for harness tests: a
// scriptable in-memory evaluator that records every capability call, and a
// predictable run-ID generator.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/roach88/regress/internal/evaluator"
)

// Call records one capability invocation against a FakeEvaluator.
type Call struct {
	Session int    // 1-based session number
	Op      string // evaluator.OpCreate, OpInstall, OpDump, OpDestroy
	Arg     string // program text, file path, or table name
}

// FakeEvaluator is a scriptable evaluator.Evaluator.
//
// Dumps return Tables[name] by default. A program installed into a session is
// also parsed for "name=value" lines, which set that session's table contents,
// so a test file can script its own engine output. DumpFunc overrides both.
type FakeEvaluator struct {
	// Tables holds canned dump output by table name.
	Tables map[string]string

	// DumpFunc, if set, computes dump output from the installed programs.
	DumpFunc func(name string, installed []string) (string, error)

	// InstallErr fails installs whose text contains the key.
	InstallErr map[string]error

	// DumpErr fails dumps of the named table.
	DumpErr map[string]error

	// CreateErr fails every Create.
	CreateErr error

	mu        sync.Mutex
	calls     []Call
	sessions  int
	destroyed int
}

// NewFakeEvaluator creates a fake with the given canned tables.
func NewFakeEvaluator(tables map[string]string) *FakeEvaluator {
	if tables == nil {
		tables = map[string]string{}
	}
	return &FakeEvaluator{Tables: tables}
}

// Name implements evaluator.Evaluator.
func (f *FakeEvaluator) Name() string {
	return "fake"
}

// Create implements evaluator.Evaluator.
func (f *FakeEvaluator) Create(ctx context.Context, port int) (evaluator.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, evaluator.NewEngineError(evaluator.OpCreate, "", f.CreateErr)
	}
	f.sessions++
	f.calls = append(f.calls, Call{Session: f.sessions, Op: evaluator.OpCreate, Arg: fmt.Sprint(port)})
	return &fakeSession{parent: f, id: f.sessions, tables: map[string]string{}}, nil
}

// Calls returns a copy of the recorded calls in order.
func (f *FakeEvaluator) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsFor returns the recorded arguments of one operation in order.
func (f *FakeEvaluator) CallsFor(op string) []string {
	var args []string
	for _, c := range f.Calls() {
		if c.Op == op {
			args = append(args, c.Arg)
		}
	}
	return args
}

// Created returns the number of sessions created.
func (f *FakeEvaluator) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

// Destroyed returns the number of sessions destroyed.
func (f *FakeEvaluator) Destroyed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func (f *FakeEvaluator) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

type fakeSession struct {
	parent    *FakeEvaluator
	id        int
	installed []string
	tables    map[string]string
	destroyed bool
}

func (s *fakeSession) InstallProgram(ctx context.Context, text string) error {
	if s.destroyed {
		return evaluator.NewEngineError(evaluator.OpInstall, "<program>", evaluator.ErrDestroyed)
	}
	if err := ctx.Err(); err != nil {
		return evaluator.NewEngineError(evaluator.OpInstall, "<program>", err)
	}
	s.parent.record(Call{Session: s.id, Op: evaluator.OpInstall, Arg: text})

	for key, err := range s.parent.InstallErr {
		if strings.Contains(text, key) {
			return evaluator.NewEngineError(evaluator.OpInstall, "<program>", err)
		}
	}

	s.installed = append(s.installed, text)
	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		s.tables[strings.TrimSpace(name)] += strings.ReplaceAll(value, `\n`, "\n")
	}
	return nil
}

func (s *fakeSession) InstallFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return evaluator.NewEngineError(evaluator.OpInstall, path, err)
	}
	return s.InstallProgram(ctx, string(data))
}

func (s *fakeSession) DumpTable(ctx context.Context, name string) (string, error) {
	if s.destroyed {
		return "", evaluator.NewEngineError(evaluator.OpDump, name, evaluator.ErrDestroyed)
	}
	if err := ctx.Err(); err != nil {
		return "", evaluator.NewEngineError(evaluator.OpDump, name, err)
	}
	s.parent.record(Call{Session: s.id, Op: evaluator.OpDump, Arg: name})

	if err, ok := s.parent.DumpErr[name]; ok {
		return "", evaluator.NewEngineError(evaluator.OpDump, name, err)
	}
	if s.parent.DumpFunc != nil {
		return s.parent.DumpFunc(name, append([]string(nil), s.installed...))
	}
	if out, ok := s.tables[name]; ok {
		return out, nil
	}
	if out, ok := s.parent.Tables[name]; ok {
		return out, nil
	}
	return "", evaluator.NewEngineError(evaluator.OpDump, name, fmt.Errorf("unknown table"))
}

func (s *fakeSession) Destroy() error {
	if s.destroyed {
		return evaluator.NewEngineError(evaluator.OpDestroy, "", evaluator.ErrDestroyed)
	}
	s.destroyed = true
	s.parent.record(Call{Session: s.id, Op: evaluator.OpDestroy})
	s.parent.mu.Lock()
	s.parent.destroyed++
	s.parent.mu.Unlock()
	return nil
}
