package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/regress/internal/harness"
	"github.com/roach88/regress/internal/report"
)

var _ harness.History = (*Store)(nil)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates run metadata with fixed values.
func createTestRun(id string) report.RunInfo {
	return report.RunInfo{
		ID:        id,
		Engine:    "mangle",
		Session:   "per_test",
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
