package main

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound    = errors.New("download not found")
	ErrDuplicateID = errors.New("duplicate download id")
)

// JobStore persists download jobs in a single-file SQLite database.
// SQLite gives no row-level locking worth relying on here, so every
// mutation serializes through mu.
type JobStore struct {
	mu sync.Mutex
	db *sql.DB
}

func OpenJobStore(path string) (*JobStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, err
	}

	s := &JobStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *JobStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS downloads (
		download_id    TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL,
		url            TEXT NOT NULL,
		status         TEXT NOT NULL,
		format_type    TEXT,
		bitrate_or_res TEXT,
		file_path      TEXT,
		created_at     TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *JobStore) Close() error {
	return s.db.Close()
}

// Create inserts a new Pending row. A colliding identifier surfaces as
// ErrDuplicateID.
func (s *JobStore) Create(job *DownloadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO downloads (download_id, session_id, url, status, format_type, bitrate_or_res, file_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?)`,
		job.ID, job.OwnerID, job.URL, string(job.State), job.FormatType, job.Quality, job.CreatedAt,
	)
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return ErrDuplicateID
	}
	return err
}

// UpdateState moves a job to the given state. filePath is recorded only
// alongside a Completed transition; every other state clears it. An
// unknown id returns ErrNotFound.
func (s *JobStore) UpdateState(id string, state JobState, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state != StateCompleted {
		filePath = ""
	}
	res, err := s.db.Exec(
		`UPDATE downloads SET status = ?, file_path = ? WHERE download_id = ?`,
		string(state), filePath, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *JobStore) Get(id string) (*DownloadJob, error) {
	row := s.db.QueryRow(
		`SELECT download_id, session_id, url, status, format_type, bitrate_or_res, file_path, created_at
		 FROM downloads WHERE download_id = ?`, id,
	)
	return scanJob(row)
}

// ListExpired returns every row created strictly before the cutoff.
func (s *JobStore) ListExpired(before time.Time) ([]*DownloadJob, error) {
	rows, err := s.db.Query(
		`SELECT download_id, session_id, url, status, format_type, bitrate_or_res, file_path, created_at
		 FROM downloads WHERE created_at < ?`, before,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*DownloadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a single row, used to roll back a submission the
// pool could not accept.
func (s *JobStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM downloads WHERE download_id = ?`, id)
	return err
}

// DeleteExpired removes all expired rows in one statement.
func (s *JobStore) DeleteExpired(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM downloads WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByState tallies rows per status for the stats endpoint. Error
// rows are grouped under a single "Error" bucket.
func (s *JobStore) CountByState() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM downloads GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		if JobState(status).IsError() {
			counts["Error"] += n
		} else {
			counts[status] += n
		}
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*DownloadJob, error) {
	var job DownloadJob
	var status string
	err := r.Scan(&job.ID, &job.OwnerID, &job.URL, &status, &job.FormatType, &job.Quality, &job.FilePath, &job.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan download row: %w", err)
	}
	job.State = JobState(status)
	return &job, nil
}
