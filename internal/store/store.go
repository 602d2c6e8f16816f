// Package store keeps the batch run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valpere/sheetmentor/internal"
	"github.com/valpere/sheetmentor/internal/apperr"
)

// ErrNotFound is returned by GetRun for an unknown id.
var ErrNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batch_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		spreadsheet_id TEXT NOT NULL,
		source_range TEXT NOT NULL,
		target_range TEXT NOT NULL,
		provider TEXT,
		model TEXT,
		success BOOLEAN NOT NULL,
		processed_count INTEGER NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		started_at_ms INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	-- batch_run_errors keeps the error list of a run in original order
	CREATE TABLE IF NOT EXISTS batch_run_errors (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		message TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES batch_runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON batch_runs(started_at_ms);
	CREATE INDEX IF NOT EXISTS idx_runs_spreadsheet ON batch_runs(spreadsheet_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts or replaces run together with its errors.
func (s *Store) SaveRun(ctx context.Context, run internal.BatchRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO batch_runs (id, kind, spreadsheet_id, source_range, target_range, provider, model, success, processed_count, success_count, error_count, started_at_ms, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.SpreadsheetID, run.SourceRange, run.TargetRange, run.Provider, run.Model,
		run.Success, run.ProcessedCount, run.SuccessCount, run.ErrorCount,
		run.StartedAt.UnixMilli(), run.Duration.Milliseconds())
	if err != nil {
		return storageErr("failed to save run", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_run_errors WHERE run_id = ?`, run.ID); err != nil {
		return storageErr("failed to reset run errors", err)
	}
	for i, msg := range run.Errors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO batch_run_errors (run_id, position, message) VALUES (?, ?, ?)`,
			run.ID, i, msg); err != nil {
			return storageErr("failed to save run error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("failed to commit run", err)
	}
	return nil
}

const runColumns = `id, kind, spreadsheet_id, source_range, target_range, COALESCE(provider, ''), COALESCE(model, ''), success, processed_count, success_count, error_count, started_at_ms, duration_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (internal.BatchRun, error) {
	var (
		run       internal.BatchRun
		startedMs int64
		durMs     int64
	)
	err := row.Scan(&run.ID, &run.Kind, &run.SpreadsheetID, &run.SourceRange, &run.TargetRange,
		&run.Provider, &run.Model, &run.Success, &run.ProcessedCount, &run.SuccessCount, &run.ErrorCount,
		&startedMs, &durMs)
	if err != nil {
		return run, err
	}
	run.StartedAt = time.UnixMilli(startedMs)
	run.Duration = time.Duration(durMs) * time.Millisecond
	return run, nil
}

// GetRun returns the run with its errors, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*internal.BatchRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM batch_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, storageErr("failed to load run", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM batch_run_errors WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, storageErr("failed to load run errors", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, storageErr("failed to load run errors", err)
		}
		run.Errors = append(run.Errors, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to load run errors", err)
	}
	return &run, nil
}

// ListRuns returns runs newest first without their error lists. A limit of
// zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]internal.BatchRun, error) {
	query := `SELECT ` + runColumns + ` FROM batch_runs ORDER BY started_at_ms DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("failed to list runs", err)
	}
	defer rows.Close()

	var runs []internal.BatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, storageErr("failed to list runs", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its errors.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_run_errors WHERE run_id = ?`, id); err != nil {
		return storageErr("failed to delete run errors", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_runs WHERE id = ?`, id); err != nil {
		return storageErr("failed to delete run", err)
	}
	return tx.Commit()
}

// ClearRuns removes all history and returns the number of runs deleted.
func (s *Store) ClearRuns(ctx context.Context) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batch_run_errors`); err != nil {
		return 0, storageErr("failed to clear run errors", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM batch_runs`)
	if err != nil {
		return 0, storageErr("failed to clear runs", err)
	}
	return res.RowsAffected()
}

// RunStats summarises the history.
type RunStats struct {
	TotalRuns     int `json:"totalRuns"`
	RefineRuns    int `json:"refineRuns"`
	FeedbackRuns  int `json:"feedbackRuns"`
	FailedRuns    int `json:"failedRuns"`
	RowsProcessed int `json:"rowsProcessed"`
	RowsSucceeded int `json:"rowsSucceeded"`
	RowErrors     int `json:"rowErrors"`
}

func (s *Store) Stats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT success THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(processed_count), 0),
			COALESCE(SUM(success_count), 0),
			COALESCE(SUM(error_count), 0)
		FROM batch_runs`, internal.RunKindRefine, internal.RunKindFeedback).Scan(
		&stats.TotalRuns,
		&stats.RefineRuns,
		&stats.FeedbackRuns,
		&stats.FailedRuns,
		&stats.RowsProcessed,
		&stats.RowsSucceeded,
		&stats.RowErrors,
	)
	if err != nil {
		return nil, storageErr("failed to compute stats", err)
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func storageErr(msg string, err error) error {
	return apperr.Wrap(err, apperr.KindStorage, msg)
}
