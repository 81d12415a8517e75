package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run is a stored run.
type Run struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Engine    string    `json:"engine"`
	Session   string    `json:"session"`
	Filter    string    `json:"filter,omitempty"`
	Update    bool      `json:"update,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Failing   []string  `json:"failing"`
}

// Result is a stored test result.
type Result struct {
	RunID   string `json:"run_id"`
	Seq     int    `json:"seq"`
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Updated bool   `json:"updated,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

const runColumns = `id, seq, engine, session, filter, update_mode, started_at, status, total, passed, failed, failing`

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
//
// Returns empty slice (not nil) if the store has no runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// RunResults returns the results of a run in execution order.
//
// Returns empty slice (not nil) if the run recorded no results.
func (s *Store) RunResults(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, name, passed, updated, kind, error, diff
		FROM results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// TestHistory returns the results of one test across runs, most recent run
// first. A limit of zero or less returns every result.
func (s *Store) TestHistory(ctx context.Context, name string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.seq, r.name, r.passed, r.updated, r.kind, r.error, r.diff
		FROM results r
		JOIN runs ON runs.id = r.run_id
		WHERE r.name = ?
		ORDER BY runs.seq DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query test history: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		update    int
		startedAt string
		failing   string
	)
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.Engine,
		&run.Session,
		&run.Filter,
		&update,
		&startedAt,
		&run.Status,
		&run.Total,
		&run.Passed,
		&run.Failed,
		&failing,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Update = update != 0
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, err
	}
	if run.Failing, err = unmarshalFailing(failing); err != nil {
		return Run{}, err
	}
	return run, nil
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	results := []Result{}
	for rows.Next() {
		var (
			r       Result
			passed  int
			updated int
		)
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Name, &passed, &updated, &r.Kind, &r.Error, &r.Diff); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Passed = passed != 0
		r.Updated = updated != 0
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
