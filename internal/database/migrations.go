package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations holds the ordered schema statements applied at startup.
// Statements must be idempotent (CREATE ... IF NOT EXISTS) so repeated
// startups are safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS content_records (
		id UUID PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_record_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		external_url TEXT NOT NULL DEFAULT '',
		attributes JSONB NOT NULL DEFAULT '{}',
		fingerprint TEXT NOT NULL,
		provider_created_at TIMESTAMPTZ,
		provider_updated_at TIMESTAMPTZ,
		last_synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (provider, provider_record_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_content_records_updated
		ON content_records (updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_content_records_kind
		ON content_records (provider, kind)`,

	`CREATE TABLE IF NOT EXISTS sync_state (
		provider TEXT PRIMARY KEY,
		last_sync_at TIMESTAMPTZ,
		last_successful_sync_at TIMESTAMPTZ,
		last_full_sync_at TIMESTAMPTZ,
		is_syncing BOOLEAN NOT NULL DEFAULT FALSE,
		sync_started_at TIMESTAMPTZ,
		quota_used_today INTEGER NOT NULL DEFAULT 0,
		quota_reset_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		cursor TEXT NOT NULL DEFAULT '',
		consecutive_error_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		content_record_id UUID NOT NULL REFERENCES content_records(id),
		backend TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		progress INTEGER NOT NULL DEFAULT 0,
		result TEXT,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_inflight
		ON jobs (content_record_id)
		WHERE status IN ('pending', 'processing')`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_created
		ON jobs (status, created_at)`,

	`CREATE TABLE IF NOT EXISTS validation_votes (
		id UUID PRIMARY KEY,
		content_record_id UUID NOT NULL REFERENCES content_records(id),
		chunk_id TEXT,
		validator_type TEXT NOT NULL,
		vote_score INTEGER NOT NULL CHECK (vote_score BETWEEN -1 AND 1),
		confidence DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
		rationale TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_validation_votes_chunk
		ON validation_votes (chunk_id)`,
	`CREATE INDEX IF NOT EXISTS idx_validation_votes_record
		ON validation_votes (content_record_id)`,

	`CREATE TABLE IF NOT EXISTS sync_runs (
		id UUID PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		total_seen INTEGER NOT NULL DEFAULT 0,
		total_new INTEGER NOT NULL DEFAULT 0,
		total_updated INTEGER NOT NULL DEFAULT 0,
		detail JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_started
		ON sync_runs (started_at DESC)`,
}

// Migrate applies the schema migrations in order.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	return nil
}
