// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package joblog persists one summary row per sync run, so operators
// can inspect recent job outcomes without scraping log output.
package joblog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mvanek/helpsync/internal/reconcile"
	"github.com/mvanek/helpsync/pkg/types"
)

const dbFile = "jobs.db"

// Summary is the durable record of one sync run.
type Summary struct {
	ID              int64     `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Uploaded        int       `json:"uploaded"`
	Updated         int       `json:"updated"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
	MissingLocal    int       `json:"missing_local"`
	RemovedUpstream int       `json:"removed_upstream"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// FromTally builds a Summary from an engine tally and the run window.
func FromTally(t reconcile.Tally, started time.Time) Summary {
	return Summary{
		StartedAt:       started.UTC(),
		FinishedAt:      started.Add(t.Duration).UTC(),
		Uploaded:        t.Uploaded,
		Updated:         t.Updated,
		Skipped:         t.Skipped,
		Failed:          t.Failed,
		MissingLocal:    t.MissingLocal,
		RemovedUpstream: t.RemovedUpstream,
		DurationSeconds: t.Duration.Seconds(),
	}
}

// Store manages the job history SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the job history database under cfg.Dir.
func Open(cfg types.JobLogConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening job database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		uploaded INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		missing_local INTEGER NOT NULL,
		removed_upstream INTEGER NOT NULL,
		duration_seconds REAL NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Save appends one run summary.
func (s *Store) Save(ctx context.Context, sum Summary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (started_at, finished_at, uploaded, updated, skipped,
			failed, missing_local, removed_upstream, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.StartedAt.UTC().Format(time.RFC3339Nano),
		sum.FinishedAt.UTC().Format(time.RFC3339Nano),
		sum.Uploaded, sum.Updated, sum.Skipped, sum.Failed,
		sum.MissingLocal, sum.RemovedUpstream, sum.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("inserting job summary: %w", err)
	}
	return nil
}

// Latest returns the most recent run summary, if any.
func (s *Store) Latest(ctx context.Context) (Summary, bool, error) {
	sums, err := s.History(ctx, 1)
	if err != nil {
		return Summary{}, false, err
	}
	if len(sums) == 0 {
		return Summary{}, false, nil
	}
	return sums[0], true, nil
}

// History returns up to limit run summaries, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, uploaded, updated, skipped,
			failed, missing_local, removed_upstream, duration_seconds
		 FROM jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job history: %w", err)
	}
	defer rows.Close()

	var sums []Summary
	for rows.Next() {
		var sum Summary
		var started, finished string
		if err := rows.Scan(&sum.ID, &started, &finished,
			&sum.Uploaded, &sum.Updated, &sum.Skipped, &sum.Failed,
			&sum.MissingLocal, &sum.RemovedUpstream, &sum.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scanning job summary: %w", err)
		}
		sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		sum.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}
