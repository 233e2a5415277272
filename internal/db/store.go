package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chriserin/pickle/internal/executor"

	_ "modernc.org/sqlite"
)

// Open opens the history database at path and brings its schema up to date.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type Run struct {
	ID          string
	FeatureName string
	FeaturePath string
	Status      executor.Status
	Ok          int
	Warning     int
	Error       int
	Skipped     int
	Duration    time.Duration
	Err         string
	StartedAt   time.Time
}

// Total is the number of step outcomes recorded for the run.
func (r Run) Total() int {
	return r.Ok + r.Warning + r.Error + r.Skipped
}

type StepResult struct {
	Scenario string
	Line     string
	Status   executor.Status
	Duration time.Duration
	Err      string
	Location string
}

// Store records feature outcomes so earlier runs can be listed.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves o and returns the generated run id.
func (s *Store) Record(ctx context.Context, o *executor.FeatureOutcome, path string, startedAt time.Time) (string, error) {
	id := uuid.New().String()
	counts := o.Counts()
	errText := ""
	if o.Err != nil {
		errText = o.Err.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning run insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, feature_name, feature_path, status, ok_count, warning_count, error_count, skipped_count, duration_ms, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, o.Feature.Name, path, o.Status.String(),
		counts[executor.Ok], counts[executor.Warning], counts[executor.Error], counts[executor.Skipped],
		o.Duration().Milliseconds(), errText, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for i, so := range o.ScenarioOutcomes {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_results (run_id, position, name, status) VALUES (?, ?, ?, ?)`,
			id, i, so.Scenario.Name, so.Status.String())
		if err != nil {
			return "", fmt.Errorf("inserting scenario result: %w", err)
		}
		scenarioID, err := res.LastInsertId()
		if err != nil {
			return "", fmt.Errorf("reading scenario result id: %w", err)
		}

		for j, st := range so.StepOutcomes {
			stepErr, location := "", ""
			if st.Err != nil {
				stepErr = st.Err.Error()
			}
			if st.Step.Definition != nil {
				location = st.Step.Definition.Location
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO step_results (scenario_result_id, position, line, status, duration_ms, error, location)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				scenarioID, j, st.Step.Line(), st.Status.String(), st.Duration.Milliseconds(), stepErr, location)
			if err != nil {
				return "", fmt.Errorf("inserting step result: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, feature_name, feature_path, status, ok_count, warning_count, error_count, skipped_count, duration_ms, error, started_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			status     string
			durationMs int64
			startedAt  string
		)
		if err := rows.Scan(&r.ID, &r.FeatureName, &r.FeaturePath, &status,
			&r.Ok, &r.Warning, &r.Error, &r.Skipped, &durationMs, &r.Err, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Status, _ = executor.ParseStatus(status)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns the step results of one run in execution order.
func (s *Store) Steps(ctx context.Context, runID string) ([]StepResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sc.name, st.line, st.status, st.duration_ms, st.error, st.location
		 FROM step_results st
		 JOIN scenario_results sc ON sc.id = st.scenario_result_id
		 WHERE sc.run_id = ?
		 ORDER BY sc.position, st.position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying step results: %w", err)
	}
	defer rows.Close()

	var results []StepResult
	for rows.Next() {
		var (
			r          StepResult
			status     string
			durationMs int64
		)
		if err := rows.Scan(&r.Scenario, &r.Line, &status, &durationMs, &r.Err, &r.Location); err != nil {
			return nil, fmt.Errorf("scanning step result: %w", err)
		}
		r.Status, _ = executor.ParseStatus(status)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}
