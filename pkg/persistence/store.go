package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"toolflow/pkg/logx"
	"toolflow/pkg/tool/metrics"
)

// Run is one workflow execution record.
type Run struct {
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ID          string     `json:"id"`
	Pipeline    string     `json:"pipeline"`
	Entities    int        `json:"entities"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
}

// EntityOutcome is the final result for one entity within a run.
type EntityOutcome struct {
	CompletedAt time.Time `json:"completed_at"`
	RunID       string    `json:"run_id"`
	Entity      string    `json:"entity"`
	Error       string    `json:"error,omitempty"`
	Success     bool      `json:"success"`
}

// Store provides run-history operations on the SQLite database.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// BeginRun records the start of a workflow run.
func (s *Store) BeginRun(id, pipeline string, entities int, startedAt time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, pipeline, started_at, entities) VALUES (?, ?, ?, ?)",
		id, pipeline, startedAt.UTC(), entities,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", id, err)
	}
	return nil
}

// CompleteRun records the final tallies for a run.
func (s *Store) CompleteRun(id string, succeeded, failed int, completedAt time.Time) error {
	result, err := s.db.Exec(
		"UPDATE runs SET completed_at = ?, succeeded = ?, failed = ? WHERE id = ?",
		completedAt.UTC(), succeeded, failed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// RecordEntity persists the final outcome for one entity in a run.
func (s *Store) RecordEntity(outcome EntityOutcome) error {
	success := 0
	if outcome.Success {
		success = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO entity_outcomes (run_id, entity, success, error, completed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, entity) DO UPDATE SET
		   success = excluded.success,
		   error = excluded.error,
		   completed_at = excluded.completed_at`,
		outcome.RunID, outcome.Entity, success, outcome.Error, outcome.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record entity %s: %w", outcome.Entity, err)
	}
	return nil
}

// RecordToolStats snapshots per-tool call totals for a run.
func (s *Store) RecordToolStats(runID string, stats map[string]metrics.Stats) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for tool, st := range stats {
		_, err := tx.Exec(
			`INSERT INTO tool_stats (run_id, tool, calls, successes, failures, rejections, latency_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, tool) DO UPDATE SET
			   calls = excluded.calls,
			   successes = excluded.successes,
			   failures = excluded.failures,
			   rejections = excluded.rejections,
			   latency_ms = excluded.latency_ms`,
			runID, tool, st.Calls, st.Successes, st.Failures, st.Rejections,
			st.TotalLatency.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to record stats for tool %s: %w", tool, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tool stats: %w", err)
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		"SELECT id, pipeline, started_at, completed_at, entities, succeeded, failed FROM runs WHERE id = ?",
		id,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		"SELECT id, pipeline, started_at, completed_at, entities, succeeded, failed FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// ListOutcomes returns per-entity outcomes for one run.
func (s *Store) ListOutcomes(runID string) ([]EntityOutcome, error) {
	rows, err := s.db.Query(
		"SELECT run_id, entity, success, error, completed_at FROM entity_outcomes WHERE run_id = ? ORDER BY completed_at",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var outcomes []EntityOutcome
	for rows.Next() {
		var o EntityOutcome
		var success int
		if err := rows.Scan(&o.RunID, &o.Entity, &success, &o.Error, &o.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Success = success != 0
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}
	return outcomes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var completed sql.NullTime
	err := row.Scan(&run.ID, &run.Pipeline, &run.StartedAt, &completed,
		&run.Entities, &run.Succeeded, &run.Failed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return &run, nil
}
