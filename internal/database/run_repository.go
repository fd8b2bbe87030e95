package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aimeuniverse/contentsync/internal/domain"
)

// runSelectColumns lists columns for SELECT queries on sync_runs.
const runSelectColumns = `id, started_at, completed_at, succeeded, failed,
	skipped, total_seen, total_new, total_updated, detail`

// RunRepository persists sync run reports as history.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create persists one completed run.
func (r *RunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sync_runs (
			id, started_at, completed_at, succeeded, failed, skipped,
			total_seen, total_new, total_updated, detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.StartedAt,
		run.CompletedAt,
		run.Succeeded,
		run.Failed,
		run.Skipped,
		run.TotalSeen,
		run.TotalNew,
		run.TotalUpdate,
		&run.Detail,
	)

	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}

	return nil
}

// ListRecent retrieves the most recent runs, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	query := `SELECT ` + runSelectColumns + ` FROM sync_runs
		ORDER BY started_at DESC LIMIT $1`

	var runs []*domain.SyncRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	if runs == nil {
		runs = []*domain.SyncRun{}
	}

	return runs, nil
}
