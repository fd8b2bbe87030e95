// Package consensus implements the validation vote tracker: immutable
// votes keyed to content chunks and consensus scores recomputed from
// the full vote history on every read.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// Validation errors surfaced to the API layer.
var (
	ErrInvalidScore      = errors.New("vote score must be -1, 0, or 1")
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
	ErrInvalidValidator  = errors.New("unknown validator type")
	ErrMissingRecord     = errors.New("content record id is required")
)

// Tracker records votes and derives consensus scores.
type Tracker struct {
	votes database.VoteRepositoryInterface
	log   logger.Logger
}

// NewTracker creates a consensus tracker.
func NewTracker(votes database.VoteRepositoryInterface, log logger.Logger) *Tracker {
	return &Tracker{votes: votes, log: log}
}

// VoteInput carries one incoming judgment.
type VoteInput struct {
	ContentRecordID string               `json:"content_record_id"`
	ChunkID         string               `json:"chunk_id"`
	ValidatorType   domain.ValidatorType `json:"validator_type"`
	VoteScore       int                  `json:"vote_score"`
	Confidence      float64              `json:"confidence"`
	Rationale       string               `json:"rationale"`
}

// Validate checks the vote's ranges and enumerations.
func (in *VoteInput) Validate() error {
	if in.ContentRecordID == "" {
		return ErrMissingRecord
	}
	if in.VoteScore < -1 || in.VoteScore > 1 {
		return ErrInvalidScore
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return ErrInvalidConfidence
	}
	if !domain.ValidValidatorType(in.ValidatorType) {
		return fmt.Errorf("%w: %s", ErrInvalidValidator, in.ValidatorType)
	}
	return nil
}

// RecordVote appends one immutable vote. Corrections are new votes; the
// history is never rewritten.
func (t *Tracker) RecordVote(ctx context.Context, in VoteInput) (*domain.ValidationVote, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	vote := &domain.ValidationVote{
		ID:              uuid.New().String(),
		ContentRecordID: in.ContentRecordID,
		ValidatorType:   in.ValidatorType,
		VoteScore:       in.VoteScore,
		Confidence:      in.Confidence,
		Rationale:       in.Rationale,
	}
	if in.ChunkID != "" {
		vote.ChunkID = &in.ChunkID
	}

	if err := t.votes.Create(ctx, vote); err != nil {
		return nil, err
	}

	t.log.Debug("validation vote recorded",
		logger.String("vote_id", vote.ID),
		logger.String("content_record_id", vote.ContentRecordID),
		logger.String("validator_type", string(vote.ValidatorType)),
		logger.Int("score", vote.VoteScore),
	)

	return vote, nil
}

// GetConsensus derives the consensus score for a chunk from its full
// vote history. Per-type scores average score times confidence within
// each validator role; the overall score is the unweighted mean of the
// per-type scores, so a flood of votes from one role cannot drown out
// the others.
func (t *Tracker) GetConsensus(ctx context.Context, chunkID string) (*domain.ConsensusScore, error) {
	votes, err := t.votes.ListByChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}

	return Compute(chunkID, votes), nil
}

// ListVotes returns the vote history for a content record.
func (t *Tracker) ListVotes(ctx context.Context, contentRecordID string) ([]*domain.ValidationVote, error) {
	return t.votes.ListByRecord(ctx, contentRecordID)
}

// Compute derives a consensus score from a vote set. Deterministic:
// the same votes always yield the same score regardless of order.
func Compute(chunkID string, votes []*domain.ValidationVote) *domain.ConsensusScore {
	score := &domain.ConsensusScore{
		ChunkID:   chunkID,
		PerType:   make(map[string]float64),
		VoteCount: len(votes),
	}
	if len(votes) == 0 {
		return score
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, v := range votes {
		key := string(v.ValidatorType)
		sums[key] += float64(v.VoteScore) * v.Confidence
		counts[key]++
	}

	types := make([]string, 0, len(sums))
	for key := range sums {
		types = append(types, key)
	}
	sort.Strings(types)

	var total float64
	for _, key := range types {
		avg := sums[key] / float64(counts[key])
		score.PerType[key] = avg
		total += avg
	}
	score.Overall = total / float64(len(types))

	return score
}
