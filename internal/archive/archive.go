// Package archive persists terminal job snapshots to SQLite so the history
// of finished work survives restarts. The live job store stays in memory;
// the archive is write-once-per-job and read by the history endpoint.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"transcriptor/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_history (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	urls TEXT NOT NULL,
	processed_count INTEGER NOT NULL,
	failed_urls TEXT,
	files TEXT,
	error TEXT,
	output_dir TEXT,
	created_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_history_finished_at ON job_history(finished_at);
`

// Entry is one archived job.
type Entry struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	URLs       []string  `json:"urls"`
	Processed  int       `json:"processed_count"`
	FailedURLs []string  `json:"failed_urls,omitempty"`
	Files      []string  `json:"files"`
	Error      string    `json:"error,omitempty"`
	OutputDir  string    `json:"output_dir,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Archive is a SQLite-backed job history.
type Archive struct {
	db *sql.DB
}

// Open connects to the SQLite database at path, creating directories and the
// schema as needed.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error { return a.db.Close() }

// Record stores a terminal job snapshot. Re-recording the same job id
// overwrites the previous row.
func (a *Archive) Record(ctx context.Context, snap jobs.Snapshot) error {
	if !snap.Status.Terminal() {
		return fmt.Errorf("job %s is not terminal (%s)", snap.ID, snap.Status)
	}

	urls, err := json.Marshal(snap.Request.URLs)
	if err != nil {
		return err
	}
	failed, err := json.Marshal(snap.FailedURLs)
	if err != nil {
		return err
	}
	files, err := json.Marshal(snap.Files)
	if err != nil {
		return err
	}

	query := `INSERT OR REPLACE INTO job_history
		(id, status, urls, processed_count, failed_urls, files, error, output_dir, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = a.db.ExecContext(ctx, query,
		snap.ID, string(snap.Status), string(urls), snap.Processed,
		string(failed), string(files), snap.Error, snap.OutputDir,
		snap.CreatedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", snap.ID, err)
	}
	return nil
}

// Get returns one archived job.
func (a *Archive) Get(ctx context.Context, id string) (*Entry, error) {
	query := `SELECT id, status, urls, processed_count, failed_urls, files, error, output_dir, created_at, finished_at
		FROM job_history WHERE id = ?`
	entry, err := scanEntry(a.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the most recently finished jobs, newest first.
func (a *Archive) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, status, urls, processed_count, failed_urls, files, error, output_dir, created_at, finished_at
		FROM job_history ORDER BY finished_at DESC LIMIT ?`
	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var urls, failed, files string
	if err := row.Scan(&e.ID, &e.Status, &urls, &e.Processed, &failed, &files,
		&e.Error, &e.OutputDir, &e.CreatedAt, &e.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(urls), &e.URLs); err != nil {
		return nil, fmt.Errorf("corrupt urls column for job %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(failed), &e.FailedURLs); err != nil {
		return nil, fmt.Errorf("corrupt failed_urls column for job %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(files), &e.Files); err != nil {
		return nil, fmt.Errorf("corrupt files column for job %s: %w", e.ID, err)
	}
	return &e, nil
}
