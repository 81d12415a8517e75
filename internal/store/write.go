package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/regress/internal/report"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run statuses stored in runs.status.
const (
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
)

// BeginRun inserts a run in the running state. The run is assigned the next
// logical sequence number.
func (s *Store) BeginRun(ctx context.Context, run report.RunInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, seq, engine, session, filter, update_mode, started_at, status)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Engine,
		run.Session,
		run.Filter,
		boolInt(run.Update),
		formatTime(run.StartedAt),
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordResult stores the result of one test. seq is the test's 1-based
// position in the run. Uses ON CONFLICT DO NOTHING for idempotency.
func (s *Store) RecordResult(ctx context.Context, runID string, seq int, res report.ComparisonResult) error {
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (run_id, seq, name, passed, updated, kind, error, diff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		seq,
		res.Name,
		boolInt(res.Passed),
		boolInt(res.Updated),
		res.Kind,
		errText,
		res.Diff,
	)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// FinishRun stores the run's totals and final status.
func (s *Store) FinishRun(ctx context.Context, summary report.Summary) error {
	failing, err := marshalFailing(summary.Failing)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE runs
			SET status = ?, total = ?, passed = ?, failed = ?, failing = ?
			WHERE id = ?
		`,
			summary.Status(),
			summary.Total,
			summary.Passed,
			summary.Failed,
			failing,
			summary.RunID,
		)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("finish run %s: %w", summary.RunID, ErrRunNotFound)
		}
		return nil
	})
}
