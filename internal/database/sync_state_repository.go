package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aimeuniverse/contentsync/internal/domain"
)

// syncStateSelectColumns lists columns for SELECT queries on sync_state.
const syncStateSelectColumns = `provider, last_sync_at, last_successful_sync_at,
	last_full_sync_at, is_syncing, sync_started_at, quota_used_today, quota_reset_at,
	cursor, consecutive_error_count, last_error, created_at, updated_at`

// SyncStateRepository handles database operations for per-provider sync state.
type SyncStateRepository struct {
	db *sqlx.DB
}

// NewSyncStateRepository creates a new sync state repository.
func NewSyncStateRepository(db *sqlx.DB) *SyncStateRepository {
	return &SyncStateRepository{db: db}
}

// GetOrCreate returns the provider's sync state, creating a default row
// if none exists. Uses INSERT ... ON CONFLICT DO NOTHING then SELECT.
func (r *SyncStateRepository) GetOrCreate(ctx context.Context, provider string) (*domain.SyncState, error) {
	insertQuery := `INSERT INTO sync_state (provider) VALUES ($1) ON CONFLICT (provider) DO NOTHING`

	_, err := r.db.ExecContext(ctx, insertQuery, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sync state: %w", err)
	}

	selectQuery := `SELECT ` + syncStateSelectColumns + ` FROM sync_state WHERE provider = $1`

	var state domain.SyncState
	if selectErr := r.db.GetContext(ctx, &state, selectQuery, provider); selectErr != nil {
		return nil, fmt.Errorf("failed to select sync state: %w", selectErr)
	}

	return &state, nil
}

// List retrieves all sync state rows.
func (r *SyncStateRepository) List(ctx context.Context) ([]*domain.SyncState, error) {
	query := `SELECT ` + syncStateSelectColumns + ` FROM sync_state ORDER BY provider`

	var states []*domain.SyncState
	if err := r.db.SelectContext(ctx, &states, query); err != nil {
		return nil, fmt.Errorf("failed to list sync state: %w", err)
	}

	if states == nil {
		states = []*domain.SyncState{}
	}

	return states, nil
}

// AcquireLease atomically claims the provider's sync lease. The claim
// succeeds when no run holds the lease, or when the holder's lease
// timestamp is older than staleBefore (reclaiming a lease left behind
// by a crashed run). Returns ErrLeaseHeld when another live run holds it.
func (r *SyncStateRepository) AcquireLease(
	ctx context.Context,
	provider string,
	staleBefore time.Time,
) error {
	query := `
		UPDATE sync_state
		SET is_syncing = TRUE, sync_started_at = NOW(), updated_at = NOW()
		WHERE provider = $1
			AND (is_syncing = FALSE OR sync_started_at IS NULL OR sync_started_at < $2)
	`

	result, err := r.db.ExecContext(ctx, query, provider, staleBefore)
	if execErr := execRequireRows(result, err, ErrLeaseHeld); execErr != nil {
		if errors.Is(execErr, ErrLeaseHeld) {
			return ErrLeaseHeld
		}
		return fmt.Errorf("failed to acquire sync lease: %w", execErr)
	}

	return nil
}

// ReleaseLease clears the lease without recording an outcome. It is the
// fallback when recording the outcome itself fails, so a provider never
// stays locked until the lease TTL expires.
func (r *SyncStateRepository) ReleaseLease(ctx context.Context, provider string) error {
	query := `UPDATE sync_state
		SET is_syncing = FALSE, sync_started_at = NULL, updated_at = NOW()
		WHERE provider = $1`

	result, err := r.db.ExecContext(ctx, query, provider)
	if execErr := execRequireRows(result, err, ErrNotFound); execErr != nil {
		return fmt.Errorf("failed to release sync lease: %w", execErr)
	}

	return nil
}

// MarkSuccess releases the lease and records a successful run: sync
// timestamps, the new cursor, the quota charged, and a cleared error
// counter. fullSync additionally stamps last_full_sync_at.
func (r *SyncStateRepository) MarkSuccess(
	ctx context.Context,
	provider, cursor string,
	fullSync bool,
	quotaCharged int,
) error {
	query := `
		UPDATE sync_state
		SET is_syncing = FALSE, sync_started_at = NULL,
			last_sync_at = NOW(), last_successful_sync_at = NOW(),
			last_full_sync_at = CASE WHEN $3 THEN NOW() ELSE last_full_sync_at END,
			cursor = $2, quota_used_today = quota_used_today + $4,
			consecutive_error_count = 0, last_error = NULL, updated_at = NOW()
		WHERE provider = $1
	`

	result, err := r.db.ExecContext(ctx, query, provider, cursor, fullSync, quotaCharged)
	if execErr := execRequireRows(result, err, ErrNotFound); execErr != nil {
		return fmt.Errorf("failed to mark sync success: %w", execErr)
	}

	return nil
}

// MarkError releases the lease and records a failed run. The quota
// consumed before the failure is still charged.
func (r *SyncStateRepository) MarkError(
	ctx context.Context,
	provider, message string,
	quotaCharged int,
) error {
	query := `
		UPDATE sync_state
		SET is_syncing = FALSE, sync_started_at = NULL,
			last_sync_at = NOW(), quota_used_today = quota_used_today + $3,
			consecutive_error_count = consecutive_error_count + 1,
			last_error = $2, updated_at = NOW()
		WHERE provider = $1
	`

	result, err := r.db.ExecContext(ctx, query, provider, message, quotaCharged)
	if execErr := execRequireRows(result, err, ErrNotFound); execErr != nil {
		return fmt.Errorf("failed to mark sync error: %w", execErr)
	}

	return nil
}

// ResetQuotaIfElapsed zeroes the daily quota counter once the reset
// boundary has passed. Idempotent and safe to call on every tick: the
// WHERE clause makes concurrent resets converge on the same row state.
func (r *SyncStateRepository) ResetQuotaIfElapsed(
	ctx context.Context,
	provider string,
	nextReset time.Time,
) (bool, error) {
	query := `
		UPDATE sync_state
		SET quota_used_today = 0, quota_reset_at = $2, updated_at = NOW()
		WHERE provider = $1 AND quota_reset_at <= NOW()
	`

	result, err := r.db.ExecContext(ctx, query, provider, nextReset)
	if err != nil {
		return false, fmt.Errorf("failed to reset quota: %w", err)
	}

	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", affectedErr)
	}

	return n > 0, nil
}
