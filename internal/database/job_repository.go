package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aimeuniverse/contentsync/internal/domain"
)

// jobSelectColumns lists columns for SELECT queries on jobs.
const jobSelectColumns = `id, content_record_id, backend, status, attempts,
	max_attempts, progress, result, error_message, created_at, updated_at,
	started_at, completed_at`

// uniqueViolationCode is the PostgreSQL error code for unique constraint
// violations, raised by the partial in-flight index on jobs.
const uniqueViolationCode = "23505"

// JobRepository handles database operations for derived-work jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new pending job. The partial unique index on
// content_record_id (for non-terminal statuses) enforces at most one
// in-flight job per record; a violation surfaces as ErrConflict so the
// caller can return the existing job instead.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}

	query := `
		INSERT INTO jobs (id, content_record_id, backend, status, max_attempts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		job.ID,
		job.ContentRecordID,
		job.Backend,
		job.Status,
		job.MaxAttempts,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return ErrConflict
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM jobs WHERE id = $1`

	var job domain.Job
	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// FindActive returns the non-terminal job for a content record, or
// ErrNotFound when every job for the record is terminal (or none exist).
func (r *JobRepository) FindActive(ctx context.Context, contentRecordID string) (*domain.Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM jobs
		WHERE content_record_id = $1 AND status IN ('pending', 'processing')
		LIMIT 1`

	var job domain.Job
	err := r.db.GetContext(ctx, &job, query, contentRecordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active job: %w", err)
	}

	return &job, nil
}

// HasCompleted reports whether a completed job already exists for the
// content record. Used by the auto-enqueue consumer to skip records that
// already have a derived result.
func (r *JobRepository) HasCompleted(ctx context.Context, contentRecordID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM jobs WHERE content_record_id = $1 AND status = 'completed'
	)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, contentRecordID); err != nil {
		return false, fmt.Errorf("failed to check completed jobs: %w", err)
	}

	return exists, nil
}

// List retrieves jobs with optional status filtering.
func (r *JobRepository) List(ctx context.Context, status string, limit, offset int) ([]*domain.Job, error) {
	var jobs []*domain.Job
	var query string
	var args []any

	if status != "" {
		query = `SELECT ` + jobSelectColumns + ` FROM jobs
			WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []any{status, limit, offset}
	} else {
		query = `SELECT ` + jobSelectColumns + ` FROM jobs
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}

	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.Job{}
	}

	return jobs, nil
}

// Count returns the number of jobs, optionally filtered by status.
func (r *JobRepository) Count(ctx context.Context, status string) (int, error) {
	var count int
	var err error

	if status != "" {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM jobs WHERE status = $1`, status)
	} else {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM jobs`)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	return count, nil
}

// CountByStatus returns job counts grouped by status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	query := `SELECT status, COUNT(*) AS n FROM jobs GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if scanErr := rows.Scan(&status, &n); scanErr != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", scanErr)
		}
		counts[status] = n
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", rowsErr)
	}

	return counts, nil
}

// ClaimOldestPending atomically claims the oldest pending job: it
// transitions pending -> processing and increments attempts in a single
// conditional update, so two workers can never claim the same job.
// FOR UPDATE SKIP LOCKED keeps concurrent claimers from blocking on each
// other. Returns ErrNotFound when no pending job exists.
func (r *JobRepository) ClaimOldestPending(ctx context.Context) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = 'processing', attempts = attempts + 1, progress = 0,
			started_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobSelectColumns

	var job domain.Job
	err := r.db.GetContext(ctx, &job, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return &job, nil
}

// UpdateProgress records worker progress on a processing job.
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	query := `UPDATE jobs SET progress = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`

	result, err := r.db.ExecContext(ctx, query, id, progress)
	if execErr := execRequireRows(result, err, ErrNotFound); execErr != nil {
		return fmt.Errorf("failed to update job progress: %w", execErr)
	}

	return nil
}

// Complete transitions a processing job to completed and stores its
// result. Conditional on the processing status so a completed or failed
// job is never resurrected.
func (r *JobRepository) Complete(ctx context.Context, id, result string) error {
	query := `UPDATE jobs
		SET status = 'completed', progress = 100, result = $2,
			completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`

	res, err := r.db.ExecContext(ctx, query, id, result)
	if execErr := execRequireRows(res, err, ErrConflict); execErr != nil {
		return fmt.Errorf("failed to complete job: %w", execErr)
	}

	return nil
}

// Requeue returns a processing job to pending after a backend failure,
// recording the error. Only valid while attempts remain.
func (r *JobRepository) Requeue(ctx context.Context, id, message string) error {
	query := `UPDATE jobs
		SET status = 'pending', error_message = $2, progress = 0, updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND attempts < max_attempts`

	res, err := r.db.ExecContext(ctx, query, id, message)
	if execErr := execRequireRows(res, err, ErrConflict); execErr != nil {
		return fmt.Errorf("failed to requeue job: %w", execErr)
	}

	return nil
}

// RetryFailed resets a failed job to pending with a fresh attempt
// budget. Conditional on the failed status so active or completed jobs
// cannot be reset. If another in-flight job for the same record was
// created in the meantime, the in-flight index rejects the reset and
// ErrConflict is returned.
func (r *JobRepository) RetryFailed(ctx context.Context, id string) error {
	query := `UPDATE jobs
		SET status = 'pending', attempts = 0, progress = 0,
			error_message = NULL, completed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'failed'`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return ErrConflict
		}
	}
	if execErr := execRequireRows(res, err, ErrConflict); execErr != nil {
		return fmt.Errorf("failed to retry job: %w", execErr)
	}

	return nil
}

// Fail transitions a processing job to terminal failed with the final
// error recorded.
func (r *JobRepository) Fail(ctx context.Context, id, message string) error {
	query := `UPDATE jobs
		SET status = 'failed', error_message = $2,
			completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`

	res, err := r.db.ExecContext(ctx, query, id, message)
	if execErr := execRequireRows(res, err, ErrConflict); execErr != nil {
		return fmt.Errorf("failed to fail job: %w", execErr)
	}

	return nil
}
