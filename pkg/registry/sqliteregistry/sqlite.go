// Package sqliteregistry implements the best-effort secondary job registry
// on SQLite. The mirror holds a queryable subset of job state (status and
// start/finish times, no usage) and is never authoritative: the tracker logs
// and swallows any write failure.
package sqliteregistry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eodrift/jobtracker/pkg/jobstatus"
	"github.com/eodrift/jobtracker/pkg/tracker"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_status (
	job_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	started TEXT,
	finished TEXT,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_status_status ON job_status(status);
`

// Store mirrors job status into a SQLite database.
type Store struct {
	db *sql.DB
}

var _ tracker.SecondaryRegistry = (*Store)(nil)

// Open opens (and if needed initializes) the mirror database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open mirror database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize mirror schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SetStatus upserts the mirrored status row for jobID. Empty started or
// finished values are stored as NULL.
func (s *Store) SetStatus(ctx context.Context, jobID string, status jobstatus.Status, started, finished string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_status (job_id, status, started, finished, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			started = excluded.started,
			finished = excluded.finished,
			updated_at = excluded.updated_at
	`, jobID, string(status), nullString(started), nullString(finished), time.Now().UTC())
	return err
}

// Status returns the mirrored row for jobID.
func (s *Store) Status(ctx context.Context, jobID string) (jobstatus.Snapshot, error) {
	var status string
	var started, finished sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT status, started, finished FROM job_status WHERE job_id = ?
	`, jobID).Scan(&status, &started, &finished)
	if err != nil {
		return jobstatus.Snapshot{}, err
	}
	return jobstatus.Snapshot{
		Status:     jobstatus.Status(status),
		StartTime:  started.String,
		FinishTime: finished.String,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
