package store

import (
	"context"
	"fmt"
	"time"
)

// Run is the persisted summary of one exploration run.
type Run struct {
	ID          string
	Model       string
	Strategy    string
	Backend     string
	Workers     int
	States      int64
	Transitions int64
	Depth       int
	Truncated   bool
	Elapsed     time.Duration
	StartedAt   time.Time
}

// WriteRun records a run summary.
// Uses ON CONFLICT(id) DO NOTHING - rewriting the same run is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	truncated := 0
	if run.Truncated {
		truncated = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, model, strategy, backend, workers, states, transitions, depth, truncated, elapsed_ns, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Model,
		run.Strategy,
		run.Backend,
		run.Workers,
		run.States,
		run.Transitions,
		run.Depth,
		truncated,
		run.Elapsed.Nanoseconds(),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	return nil
}

// ReadRuns returns recorded runs in insertion order.
// If model is non-empty only runs of that model are returned.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ReadRuns(ctx context.Context, model string) ([]Run, error) {
	query := `
		SELECT id, model, strategy, backend, workers, states, transitions, depth, truncated, elapsed_ns, started_at
		FROM runs`
	var args []any
	if model != "" {
		query += ` WHERE model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run       Run
			truncated int
			elapsedNS int64
			started   string
		)
		if err := rows.Scan(
			&run.ID, &run.Model, &run.Strategy, &run.Backend, &run.Workers,
			&run.States, &run.Transitions, &run.Depth, &truncated, &elapsedNS, &started,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Truncated = truncated != 0
		run.Elapsed = time.Duration(elapsedNS)
		run.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}
