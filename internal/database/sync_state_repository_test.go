package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/aimeuniverse/contentsync/internal/database"
)

// syncStateColumns lists the columns returned by sync_state SELECT
// queries.
var syncStateColumns = []string{
	"provider", "last_sync_at", "last_successful_sync_at", "last_full_sync_at",
	"is_syncing", "sync_started_at", "quota_used_today", "quota_reset_at",
	"cursor", "consecutive_error_count", "last_error", "created_at", "updated_at",
}

func newSyncStateRepo(t *testing.T) (*database.SyncStateRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewSyncStateRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func TestSyncState_GetOrCreate_NewProvider(t *testing.T) {
	repo, mock, cleanup := newSyncStateRepo(t)
	defer cleanup()

	now := time.Now()

	mock.ExpectExec("INSERT INTO sync_state").
		WithArgs("youtube").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("SELECT .+ FROM sync_state WHERE provider").
		WithArgs("youtube").
		WillReturnRows(
			sqlmock.NewRows(syncStateColumns).AddRow(
				"youtube", nil, nil, nil,
				false, nil, 0, now,
				"", 0, nil, now, now,
			),
		)

	state, err := repo.GetOrCreate(context.Background(), "youtube")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if state.Provider != "youtube" {
		t.Errorf("expected provider=youtube, got %s", state.Provider)
	}
	if state.IsSyncing {
		t.Error("expected new state to not be syncing")
	}
	if state.QuotaUsedToday != 0 {
		t.Errorf("expected quota_used_today=0, got %d", state.QuotaUsedToday)
	}

	expectationsMet(t, mock)
}

func TestSyncState_AcquireLease(t *testing.T) {
	repo, mock, cleanup := newSyncStateRepo(t)
	defer cleanup()

	staleBefore := time.Now().Add(-30 * time.Minute)

	mock.ExpectExec("UPDATE sync_state").
		WithArgs("youtube", staleBefore).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AcquireLease(context.Background(), "youtube", staleBefore); err != nil {
		t.Fatalf("AcquireLease() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestSyncState_AcquireLease_Held(t *testing.T) {
	repo, mock, cleanup := newSyncStateRepo(t)
	defer cleanup()

	staleBefore := time.Now().Add(-30 * time.Minute)

	// A live lease makes the conditional update match no row.
	mock.ExpectExec("UPDATE sync_state").
		WithArgs("youtube", staleBefore).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AcquireLease(context.Background(), "youtube", staleBefore)
	if !errors.Is(err, database.ErrLeaseHeld) {
		t.Errorf("expected ErrLeaseHeld, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestSyncState_MarkSuccess(t *testing.T) {
	repo, mock, cleanup := newSyncStateRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE sync_state").
		WithArgs("youtube", "cursor-7", true, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSuccess(context.Background(), "youtube", "cursor-7", true, 42)
	if err != nil {
		t.Fatalf("MarkSuccess() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestSyncState_MarkError(t *testing.T) {
	repo, mock, cleanup := newSyncStateRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE sync_state").
		WithArgs("youtube", "fetch failed", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkError(context.Background(), "youtube", "fetch failed", 5)
	if err != nil {
		t.Fatalf("MarkError() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestSyncState_ResetQuotaIfElapsed(t *testing.T) {
	repo, mock, cleanup := newSyncStateRepo(t)
	defer cleanup()

	nextReset := time.Now().Add(24 * time.Hour)

	mock.ExpectExec("UPDATE sync_state").
		WithArgs("youtube", nextReset).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reset, err := repo.ResetQuotaIfElapsed(context.Background(), "youtube", nextReset)
	if err != nil {
		t.Fatalf("ResetQuotaIfElapsed() error = %v", err)
	}
	if !reset {
		t.Error("expected reset to report true")
	}

	expectationsMet(t, mock)
}

func TestSyncState_ResetQuotaIfElapsed_NotDue(t *testing.T) {
	repo, mock, cleanup := newSyncStateRepo(t)
	defer cleanup()

	nextReset := time.Now().Add(24 * time.Hour)

	mock.ExpectExec("UPDATE sync_state").
		WithArgs("youtube", nextReset).
		WillReturnResult(sqlmock.NewResult(0, 0))

	reset, err := repo.ResetQuotaIfElapsed(context.Background(), "youtube", nextReset)
	if err != nil {
		t.Fatalf("ResetQuotaIfElapsed() error = %v", err)
	}
	if reset {
		t.Error("expected reset to report false when the boundary has not passed")
	}

	expectationsMet(t, mock)
}
