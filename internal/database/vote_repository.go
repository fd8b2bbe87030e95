package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aimeuniverse/contentsync/internal/domain"
)

// voteSelectColumns lists columns for SELECT queries on validation_votes.
const voteSelectColumns = `id, content_record_id, chunk_id, validator_type,
	vote_score, confidence, rationale, created_at`

// VoteRepository handles database operations for validation votes.
// Votes are append-only; there are no update or delete operations.
type VoteRepository struct {
	db *sqlx.DB
}

// NewVoteRepository creates a new vote repository.
func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Create appends a new vote.
func (r *VoteRepository) Create(ctx context.Context, vote *domain.ValidationVote) error {
	if vote.ID == "" {
		vote.ID = uuid.New().String()
	}

	query := `
		INSERT INTO validation_votes (
			id, content_record_id, chunk_id, validator_type,
			vote_score, confidence, rationale
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		vote.ID,
		vote.ContentRecordID,
		vote.ChunkID,
		vote.ValidatorType,
		vote.VoteScore,
		vote.Confidence,
		vote.Rationale,
	).Scan(&vote.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create validation vote: %w", err)
	}

	return nil
}

// ListByChunk retrieves the full vote history for a chunk in insertion
// order. Consensus is recomputed from this history on every read.
func (r *VoteRepository) ListByChunk(ctx context.Context, chunkID string) ([]*domain.ValidationVote, error) {
	query := `SELECT ` + voteSelectColumns + ` FROM validation_votes
		WHERE chunk_id = $1 ORDER BY created_at ASC`

	var votes []*domain.ValidationVote
	if err := r.db.SelectContext(ctx, &votes, query, chunkID); err != nil {
		return nil, fmt.Errorf("failed to list votes for chunk: %w", err)
	}

	if votes == nil {
		votes = []*domain.ValidationVote{}
	}

	return votes, nil
}

// ListByRecord retrieves all votes for a content record.
func (r *VoteRepository) ListByRecord(ctx context.Context, contentRecordID string) ([]*domain.ValidationVote, error) {
	query := `SELECT ` + voteSelectColumns + ` FROM validation_votes
		WHERE content_record_id = $1 ORDER BY created_at ASC`

	var votes []*domain.ValidationVote
	if err := r.db.SelectContext(ctx, &votes, query, contentRecordID); err != nil {
		return nil, fmt.Errorf("failed to list votes for record: %w", err)
	}

	if votes == nil {
		votes = []*domain.ValidationVote{}
	}

	return votes, nil
}
