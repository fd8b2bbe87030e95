package api

import (
	"context"

	"github.com/aimeuniverse/contentsync/internal/consensus"
	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/storage"
	"github.com/aimeuniverse/contentsync/internal/syncer"
)

// SyncService triggers sync runs.
type SyncService interface {
	Run(ctx context.Context, req syncer.Request) (*domain.SyncRunReport, error)
}

// JobService exposes the job queue to the API.
type JobService interface {
	Enqueue(ctx context.Context, contentRecordID, backend string) (*domain.Job, bool, error)
	Retry(ctx context.Context, id string) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, status string, limit, offset int) ([]*domain.Job, int, error)
	Stats(ctx context.Context) (map[string]int, error)
}

// VoteService records votes and derives consensus.
type VoteService interface {
	RecordVote(ctx context.Context, in consensus.VoteInput) (*domain.ValidationVote, error)
	GetConsensus(ctx context.Context, chunkID string) (*domain.ConsensusScore, error)
	ListVotes(ctx context.Context, contentRecordID string) ([]*domain.ValidationVote, error)
}

// TranscriptSearcher serves full-text search over completed results.
type TranscriptSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]storage.TranscriptHit, error)
}
