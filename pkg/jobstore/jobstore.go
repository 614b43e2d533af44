// Package jobstore persists ingestion jobs in Postgres. Jobs transition
// between statuses and are never deleted; claiming is race-safe so multiple
// workers can share one queue.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Job statuses. A job is "active" while pending or running.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNoJobAvailable is returned when ClaimDue finds nothing runnable.
// Callers should check with errors.Is().
var ErrNoJobAvailable = errors.New("no job available")

// ErrLostClaim is returned when another worker claimed the job first.
var ErrLostClaim = errors.New("job already claimed")

// jobSelectColumns lists columns for SELECT queries on ingest_jobs.
const jobSelectColumns = `id, job_type, profile_id, source_url, dedup_key, depth,
	status, attempts, priority, run_at, error_message, created_at, updated_at`

// Job is one unit of ingestion work: fetch a page of job_type for a profile
// and merge what it yields.
type Job struct {
	ID           string         `db:"id"`
	JobType      string         `db:"job_type"`
	ProfileID    string         `db:"profile_id"`
	SourceURL    string         `db:"source_url"`
	DedupKey     string         `db:"dedup_key"`
	Depth        int            `db:"depth"`
	Status       string         `db:"status"`
	Attempts     int            `db:"attempts"`
	Priority     int            `db:"priority"`
	RunAt        time.Time      `db:"run_at"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// Store handles database operations for ingestion jobs.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new job store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// InsertParams contains the parameters for enqueuing a new job.
type InsertParams struct {
	JobType   string
	ProfileID string
	SourceURL string
	DedupKey  string
	Depth     int
	Priority  int
	RunAt     time.Time
}

// Insert creates a new pending job and returns its generated ID.
func (s *Store) Insert(ctx context.Context, params InsertParams) (string, error) {
	id := uuid.NewString()
	runAt := params.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ingest_jobs (id, job_type, profile_id, source_url, dedup_key, depth, priority, status, run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
	`

	_, err := s.db.ExecContext(
		ctx, query,
		id, params.JobType, params.ProfileID, params.SourceURL,
		params.DedupKey, params.Depth, params.Priority, runAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert job: %w", err)
	}

	return id, nil
}

// FindActiveOrRecent looks up a job with the same (job_type, profile_id,
// dedup_key) that is still active or completed within the window. It backs
// the idempotent enqueue: a hit means the caller reuses the existing job.
func (s *Store) FindActiveOrRecent(ctx context.Context, jobType, profileID, dedupKey string, window time.Duration) (*Job, error) {
	query := `
		SELECT ` + jobSelectColumns + `
		FROM ingest_jobs
		WHERE job_type = $1
		  AND profile_id = $2
		  AND dedup_key = $3
		  AND (status IN ('pending', 'running')
		       OR (status = 'completed' AND updated_at >= $4))
		ORDER BY created_at DESC
		LIMIT 1
	`

	var job Job
	err := s.db.GetContext(ctx, &job, query, jobType, profileID, dedupKey, time.Now().UTC().Add(-window))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up existing job: %w", err)
	}

	return &job, nil
}

// Claim transitions a single pending job to running. Zero rows affected
// means another worker won the race; the caller gets ErrLostClaim and moves
// on.
func (s *Store) Claim(ctx context.Context, id string) error {
	query := `
		UPDATE ingest_jobs
		SET status = 'running', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read claim result: %w", err)
	}
	if rows == 0 {
		return ErrLostClaim
	}

	return nil
}

// ClaimDue selects up to limit due pending jobs, locks them, and marks them
// running, all in one transaction. SKIP LOCKED keeps concurrent workers from
// stalling on each other's rows.
func (s *Store) ClaimDue(ctx context.Context, limit int) ([]*Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	jobs, selectErr := claimDueSelect(ctx, tx, limit)
	if selectErr != nil {
		return nil, selectErr
	}
	if len(jobs) == 0 {
		return nil, ErrNoJobAvailable
	}

	if updateErr := claimDueUpdate(ctx, tx, jobs); updateErr != nil {
		return nil, updateErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", commitErr)
	}

	for _, job := range jobs {
		job.Status = StatusRunning
	}
	return jobs, nil
}

func claimDueSelect(ctx context.Context, tx *sqlx.Tx, limit int) ([]*Job, error) {
	query := `
		SELECT ` + jobSelectColumns + `
		FROM ingest_jobs
		WHERE status = 'pending'
		  AND run_at <= NOW()
		ORDER BY priority DESC, run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	var jobs []*Job
	if err := tx.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to select due jobs: %w", err)
	}
	return jobs, nil
}

func claimDueUpdate(ctx context.Context, tx *sqlx.Tx, jobs []*Job) error {
	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}

	query, args, err := sqlx.In(`UPDATE ingest_jobs SET status = 'running', updated_at = NOW() WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("failed to build claim update: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark jobs running: %w", err)
	}
	return nil
}

// MarkCompleted finalizes a job successfully and clears any stale error.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	query := `
		UPDATE ingest_jobs
		SET status = 'completed', error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, execErr := s.db.ExecContext(ctx, query, id)
	return execRequireRows(result, execErr, fmt.Errorf("job not found: %s", id))
}

// MarkFailed finalizes a job terminally with the classified error message.
func (s *Store) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE ingest_jobs
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := s.db.ExecContext(ctx, query, errorMessage, id)
	return execRequireRows(result, execErr, fmt.Errorf("job not found: %s", id))
}

// Reschedule puts a job back to pending with attempts incremented and run_at
// pushed out to the caller's backoff time.
func (s *Store) Reschedule(ctx context.Context, id, errorMessage string, runAt time.Time) error {
	query := `
		UPDATE ingest_jobs
		SET status = 'pending',
			attempts = attempts + 1,
			error_message = $1,
			run_at = $2,
			updated_at = NOW()
		WHERE id = $3
	`

	result, execErr := s.db.ExecContext(ctx, query, errorMessage, runAt, id)
	return execRequireRows(result, execErr, fmt.Errorf("job not found: %s", id))
}

// Get returns a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM ingest_jobs WHERE id = $1`

	var job Job
	if err := s.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListForProfile returns a profile's jobs, newest first, for inspection.
func (s *Store) ListForProfile(ctx context.Context, profileID string, limit int) ([]*Job, error) {
	query := `
		SELECT ` + jobSelectColumns + `
		FROM ingest_jobs
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var jobs []*Job
	if err := s.db.SelectContext(ctx, &jobs, query, profileID, limit); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// execRequireRows converts a zero-row UPDATE into notFound.
func execRequireRows(result sql.Result, execErr, notFound error) error {
	if execErr != nil {
		return fmt.Errorf("exec failed: %w", execErr)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
