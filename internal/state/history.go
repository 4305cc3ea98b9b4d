// Package state persists a history of download runs in SQLite.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"multi_downloader/internal/download/types"
)

// RunRecord is one stored run.
type RunRecord struct {
	ID        string
	FileType  string
	OutputDir string
	StartedAt time.Time
	Elapsed   time.Duration
	Succeeded int
	Failed    int
}

// TaskRecord is one stored task outcome.
type TaskRecord struct {
	Index        int
	URL          string
	DestPath     string
	Status       string
	Attempts     int
	Bytes        int64
	ContentType  string
	DetectedType string
	Error        string
	Elapsed      time.Duration
}

// RecordRun stores a run summary and all its task outcomes in one transaction.
func (s *Store) RecordRun(ctx context.Context, fileType, outputDir string, summary *types.RunSummary) error {
	if summary == nil {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, file_type, output_dir, started_at, elapsed_ms, succeeded, failed)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			summary.RunID, fileType, outputDir,
			summary.Started.UnixMilli(), summary.Elapsed.Milliseconds(),
			summary.Succeeded, summary.Failed)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO tasks (run_id, task_index, url, dest_path, status, attempts, bytes, content_type, detected_type, error, elapsed_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare task insert: %w", err)
		}
		defer stmt.Close()

		for _, o := range summary.Outcomes {
			var errText string
			if o.LastErr != nil && !o.Succeeded() {
				errText = o.LastErr.Error()
			}
			if _, err := stmt.ExecContext(ctx,
				summary.RunID, o.Task.ID, o.Task.URL, o.Task.DestPath, string(o.Status),
				o.Attempts, o.BytesWritten, o.ContentType, o.DetectedType, errText, o.Elapsed.Milliseconds()); err != nil {
				return fmt.Errorf("failed to insert task %d: %w", o.Task.ID, err)
			}
		}
		return nil
	})
}

// History returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (s *Store) History(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, file_type, output_dir, started_at, elapsed_ms, succeeded, failed
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedMs, elapsedMs int64
		if err := rows.Scan(&r.ID, &r.FileType, &r.OutputDir, &startedMs, &elapsedMs, &r.Succeeded, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunTasks returns the task outcomes of one run in input order.
func (s *Store) RunTasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_index, url, dest_path, status, attempts, bytes,
			COALESCE(content_type, ''), COALESCE(detected_type, ''), COALESCE(error, ''), elapsed_ms
		 FROM tasks WHERE run_id = ? ORDER BY task_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var t TaskRecord
		var elapsedMs int64
		if err := rows.Scan(&t.Index, &t.URL, &t.DestPath, &t.Status, &t.Attempts, &t.Bytes,
			&t.ContentType, &t.DetectedType, &t.Error, &elapsedMs); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
