package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/domain"
)

// jobColumns lists the columns returned by jobs SELECT queries.
var jobColumns = []string{
	"id", "content_record_id", "backend", "status", "attempts",
	"max_attempts", "progress", "result", "error_message", "created_at",
	"updated_at", "started_at", "completed_at",
}

func newJobRepo(t *testing.T) (*database.JobRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewJobRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func TestJob_Create(t *testing.T) {
	repo, mock, cleanup := newJobRepo(t)
	defer cleanup()

	now := time.Now()

	mock.ExpectQuery("INSERT INTO jobs").
		WillReturnRows(
			sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now),
		)

	job := &domain.Job{
		ContentRecordID: "rec-1",
		Backend:         "transcribe",
		MaxAttempts:     3,
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if job.ID == "" {
		t.Error("expected Create to assign an id")
	}
	if job.Status != domain.JobStatusPending {
		t.Errorf("expected status=pending, got %s", job.Status)
	}

	expectationsMet(t, mock)
}

func TestJob_Create_InFlightConflict(t *testing.T) {
	repo, mock, cleanup := newJobRepo(t)
	defer cleanup()

	// The partial unique index rejects a second in-flight job for the
	// same record.
	mock.ExpectQuery("INSERT INTO jobs").
		WillReturnError(&pq.Error{Code: "23505"})

	job := &domain.Job{
		ContentRecordID: "rec-1",
		Backend:         "transcribe",
		MaxAttempts:     3,
	}
	err := repo.Create(context.Background(), job)
	if !errors.Is(err, database.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestJob_ClaimOldestPending(t *testing.T) {
	repo, mock, cleanup := newJobRepo(t)
	defer cleanup()

	now := time.Now()

	mock.ExpectQuery("UPDATE jobs").
		WillReturnRows(
			sqlmock.NewRows(jobColumns).AddRow(
				"job-1", "rec-1", "transcribe", "processing", 1,
				3, 0, nil, nil, now,
				now, &now, nil,
			),
		)

	job, err := repo.ClaimOldestPending(context.Background())
	if err != nil {
		t.Fatalf("ClaimOldestPending() error = %v", err)
	}
	if job.Status != domain.JobStatusProcessing {
		t.Errorf("expected status=processing, got %s", job.Status)
	}
	if job.Attempts != 1 {
		t.Errorf("expected attempts=1, got %d", job.Attempts)
	}

	expectationsMet(t, mock)
}

func TestJob_ClaimOldestPending_EmptyQueue(t *testing.T) {
	repo, mock, cleanup := newJobRepo(t)
	defer cleanup()

	mock.ExpectQuery("UPDATE jobs").
		WillReturnRows(sqlmock.NewRows(jobColumns))

	_, err := repo.ClaimOldestPending(context.Background())
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestJob_Complete_RequiresProcessing(t *testing.T) {
	repo, mock, cleanup := newJobRepo(t)
	defer cleanup()

	// A job no longer in processing matches no row.
	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", "transcript text").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(context.Background(), "job-1", "transcript text")
	if !errors.Is(err, database.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestJob_Requeue(t *testing.T) {
	repo, mock, cleanup := newJobRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", "backend timeout").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Requeue(context.Background(), "job-1", "backend timeout"); err != nil {
		t.Fatalf("Requeue() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestJob_RetryFailed_OnlyFailedJobs(t *testing.T) {
	repo, mock, cleanup := newJobRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RetryFailed(context.Background(), "job-1")
	if !errors.Is(err, database.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestJob_HasCompleted(t *testing.T) {
	repo, mock, cleanup := newJobRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	done, err := repo.HasCompleted(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("HasCompleted() error = %v", err)
	}
	if !done {
		t.Error("expected HasCompleted to report true")
	}

	expectationsMet(t, mock)
}

func TestJob_CountByStatus(t *testing.T) {
	repo, mock, cleanup := newJobRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(
			sqlmock.NewRows([]string{"status", "n"}).
				AddRow("pending", 4).
				AddRow("completed", 9),
		)

	counts, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if counts["pending"] != 4 || counts["completed"] != 9 {
		t.Errorf("unexpected counts: %v", counts)
	}

	expectationsMet(t, mock)
}
