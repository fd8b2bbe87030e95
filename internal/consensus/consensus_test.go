package consensus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimeuniverse/contentsync/internal/consensus"
	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// fakeVoteRepo is an append-only in-memory vote store.
type fakeVoteRepo struct {
	votes []*domain.ValidationVote
}

func (f *fakeVoteRepo) Create(_ context.Context, vote *domain.ValidationVote) error {
	clone := *vote
	f.votes = append(f.votes, &clone)
	return nil
}

func (f *fakeVoteRepo) ListByChunk(_ context.Context, chunkID string) ([]*domain.ValidationVote, error) {
	var out []*domain.ValidationVote
	for _, v := range f.votes {
		if v.ChunkID != nil && *v.ChunkID == chunkID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVoteRepo) ListByRecord(_ context.Context, contentRecordID string) ([]*domain.ValidationVote, error) {
	var out []*domain.ValidationVote
	for _, v := range f.votes {
		if v.ContentRecordID == contentRecordID {
			out = append(out, v)
		}
	}
	return out, nil
}

func vote(vt domain.ValidatorType, score int, confidence float64) *domain.ValidationVote {
	return &domain.ValidationVote{ValidatorType: vt, VoteScore: score, Confidence: confidence}
}

func TestComputeWeightsByTypeThenAverages(t *testing.T) {
	votes := []*domain.ValidationVote{
		vote(domain.ValidatorStaff, 1, 0.8),
		vote(domain.ValidatorCommunity, -1, 0.5),
	}

	score := consensus.Compute("chunk-1", votes)

	assert.Equal(t, 2, score.VoteCount)
	assert.InDelta(t, 0.8, score.PerType["staff"], 1e-9)
	assert.InDelta(t, -0.5, score.PerType["community"], 1e-9)
	assert.InDelta(t, 0.15, score.Overall, 1e-9)
}

func TestComputeAveragesWithinType(t *testing.T) {
	votes := []*domain.ValidationVote{
		vote(domain.ValidatorElder, 1, 1.0),
		vote(domain.ValidatorElder, 1, 0.5),
		vote(domain.ValidatorElder, -1, 0.5),
	}

	score := consensus.Compute("chunk-1", votes)

	// (1.0 + 0.5 - 0.5) / 3
	assert.InDelta(t, 1.0/3.0, score.PerType["elder"], 1e-9)
	assert.InDelta(t, 1.0/3.0, score.Overall, 1e-9)
}

func TestComputeIsOrderIndependent(t *testing.T) {
	a := []*domain.ValidationVote{
		vote(domain.ValidatorStaff, 1, 0.9),
		vote(domain.ValidatorCommunity, 0, 0.4),
		vote(domain.ValidatorAutomated, -1, 0.7),
	}
	b := []*domain.ValidationVote{a[2], a[0], a[1]}

	assert.Equal(t, consensus.Compute("c", a), consensus.Compute("c", b))
}

func TestComputeEmptyVotes(t *testing.T) {
	score := consensus.Compute("chunk-1", nil)

	assert.Zero(t, score.Overall)
	assert.Zero(t, score.VoteCount)
	assert.Empty(t, score.PerType)
}

func TestRecordVoteValidation(t *testing.T) {
	tracker := consensus.NewTracker(&fakeVoteRepo{}, logger.NewNop())
	ctx := context.Background()

	base := consensus.VoteInput{
		ContentRecordID: "rec-1",
		ChunkID:         "chunk-1",
		ValidatorType:   domain.ValidatorStaff,
		VoteScore:       1,
		Confidence:      0.9,
	}

	tests := []struct {
		name    string
		mutate  func(*consensus.VoteInput)
		wantErr error
	}{
		{"score too high", func(in *consensus.VoteInput) { in.VoteScore = 2 }, consensus.ErrInvalidScore},
		{"score too low", func(in *consensus.VoteInput) { in.VoteScore = -2 }, consensus.ErrInvalidScore},
		{"confidence too high", func(in *consensus.VoteInput) { in.Confidence = 1.1 }, consensus.ErrInvalidConfidence},
		{"confidence negative", func(in *consensus.VoteInput) { in.Confidence = -0.1 }, consensus.ErrInvalidConfidence},
		{"unknown validator", func(in *consensus.VoteInput) { in.ValidatorType = "llm" }, consensus.ErrInvalidValidator},
		{"missing record", func(in *consensus.VoteInput) { in.ContentRecordID = "" }, consensus.ErrMissingRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := tracker.RecordVote(ctx, in)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRecordVoteThenConsensus(t *testing.T) {
	repo := &fakeVoteRepo{}
	tracker := consensus.NewTracker(repo, logger.NewNop())
	ctx := context.Background()

	_, err := tracker.RecordVote(ctx, consensus.VoteInput{
		ContentRecordID: "rec-1",
		ChunkID:         "chunk-1",
		ValidatorType:   domain.ValidatorStaff,
		VoteScore:       1,
		Confidence:      0.8,
	})
	require.NoError(t, err)

	_, err = tracker.RecordVote(ctx, consensus.VoteInput{
		ContentRecordID: "rec-1",
		ChunkID:         "chunk-1",
		ValidatorType:   domain.ValidatorCommunity,
		VoteScore:       -1,
		Confidence:      0.5,
	})
	require.NoError(t, err)

	score, err := tracker.GetConsensus(ctx, "chunk-1")
	require.NoError(t, err)
	assert.Equal(t, 2, score.VoteCount)
	assert.InDelta(t, 0.15, score.Overall, 1e-9)

	history, err := tracker.ListVotes(ctx, "rec-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
