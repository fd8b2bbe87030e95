package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aimeuniverse/contentsync/internal/domain"
)

// contentSelectColumns lists columns for SELECT queries on content_records.
const contentSelectColumns = `id, provider, provider_record_id, kind, title, body,
	external_url, attributes, fingerprint, provider_created_at, provider_updated_at,
	last_synced_at, inserted_at, updated_at`

// ContentRepository handles database operations for canonical content records.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new content repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// GetByProviderKey retrieves a record by its composite provider identity.
// Returns ErrNotFound when no record exists.
func (r *ContentRepository) GetByProviderKey(
	ctx context.Context,
	provider, providerRecordID string,
) (*domain.ContentRecord, error) {
	query := `SELECT ` + contentSelectColumns + `
		FROM content_records WHERE provider = $1 AND provider_record_id = $2`

	var rec domain.ContentRecord
	err := r.db.GetContext(ctx, &rec, query, provider, providerRecordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content record: %w", err)
	}

	return &rec, nil
}

// GetByID retrieves a record by its internal id.
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*domain.ContentRecord, error) {
	query := `SELECT ` + contentSelectColumns + ` FROM content_records WHERE id = $1`

	var rec domain.ContentRecord
	err := r.db.GetContext(ctx, &rec, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content record: %w", err)
	}

	return &rec, nil
}

// Insert creates a new content record. The internal id is assigned here
// and never changes. A concurrent insert of the same (provider,
// provider_record_id) surfaces as ErrConflict so the caller can re-read
// and retry as an update.
func (r *ContentRepository) Insert(ctx context.Context, rec *domain.ContentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO content_records (
			id, provider, provider_record_id, kind, title, body, external_url,
			attributes, fingerprint, provider_created_at, provider_updated_at,
			last_synced_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (provider, provider_record_id) DO NOTHING
		RETURNING inserted_at, updated_at, last_synced_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		rec.ID,
		rec.Provider,
		rec.ProviderRecordID,
		rec.Kind,
		rec.Title,
		rec.Body,
		rec.ExternalURL,
		&rec.Attributes,
		rec.Fingerprint,
		rec.ProviderCreatedAt,
		rec.ProviderUpdatedAt,
	).Scan(&rec.InsertedAt, &rec.UpdatedAt, &rec.LastSyncedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// ON CONFLICT DO NOTHING returned no row: lost an insert race.
			return ErrConflict
		}
		return fmt.Errorf("failed to insert content record: %w", err)
	}

	return nil
}

// UpdateIfNewer overwrites the mutable fields of an existing record,
// guarded so a stale batch can never downgrade a newer revision: the
// update only applies when the stored provider_updated_at is not ahead
// of the incoming one. Returns ErrConflict when the guard rejected the
// write.
func (r *ContentRepository) UpdateIfNewer(ctx context.Context, rec *domain.ContentRecord) error {
	query := `
		UPDATE content_records
		SET kind = $3, title = $4, body = $5, external_url = $6, attributes = $7,
			fingerprint = $8, provider_updated_at = $9,
			last_synced_at = NOW(), updated_at = NOW()
		WHERE provider = $1 AND provider_record_id = $2
			AND (provider_updated_at IS NULL OR $9::timestamptz IS NULL
				OR provider_updated_at <= $9::timestamptz)
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		rec.Provider,
		rec.ProviderRecordID,
		rec.Kind,
		rec.Title,
		rec.Body,
		rec.ExternalURL,
		&rec.Attributes,
		rec.Fingerprint,
		rec.ProviderUpdatedAt,
	)

	return execRequireRows(result, err, ErrConflict)
}

// ContentFilters represents filtering options for the change feed.
type ContentFilters struct {
	Since    *time.Time
	Provider string
	Kind     string
	Limit    int
	Offset   int
}

// ListChanged retrieves records updated since a point in time, optionally
// filtered by provider and kind, ordered by updated_at so collaborators
// can page through changes without re-scanning the whole store.
func (r *ContentRepository) ListChanged(
	ctx context.Context,
	filters ContentFilters,
) ([]*domain.ContentRecord, error) {
	whereClauses := []string{}
	args := []any{}
	argIndex := 1

	if filters.Since != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("updated_at > $%d", argIndex))
		args = append(args, *filters.Since)
		argIndex++
	}

	if filters.Provider != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("provider = $%d", argIndex))
		args = append(args, filters.Provider)
		argIndex++
	}

	if filters.Kind != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("kind = $%d", argIndex))
		args = append(args, filters.Kind)
		argIndex++
	}

	query := `SELECT ` + contentSelectColumns + ` FROM content_records`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY updated_at ASC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filters.Limit, filters.Offset)

	var records []*domain.ContentRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list content records: %w", err)
	}

	if records == nil {
		records = []*domain.ContentRecord{}
	}

	return records, nil
}

// CountByProvider returns the number of live records per provider.
func (r *ContentRepository) CountByProvider(ctx context.Context) (map[string]int, error) {
	query := `SELECT provider, COUNT(*) AS n FROM content_records GROUP BY provider`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count content records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var provider string
		var n int
		if scanErr := rows.Scan(&provider, &n); scanErr != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", scanErr)
		}
		counts[provider] = n
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate count rows: %w", rowsErr)
	}

	return counts, nil
}
