package database

import (
	"context"
	"time"

	"github.com/aimeuniverse/contentsync/internal/domain"
)

// ContentRepositoryInterface defines the contract for content record access.
type ContentRepositoryInterface interface {
	GetByProviderKey(ctx context.Context, provider, providerRecordID string) (*domain.ContentRecord, error)
	GetByID(ctx context.Context, id string) (*domain.ContentRecord, error)
	Insert(ctx context.Context, rec *domain.ContentRecord) error
	UpdateIfNewer(ctx context.Context, rec *domain.ContentRecord) error
	ListChanged(ctx context.Context, filters ContentFilters) ([]*domain.ContentRecord, error)
	CountByProvider(ctx context.Context) (map[string]int, error)
}

// SyncStateRepositoryInterface defines the contract for sync state access.
type SyncStateRepositoryInterface interface {
	GetOrCreate(ctx context.Context, provider string) (*domain.SyncState, error)
	List(ctx context.Context) ([]*domain.SyncState, error)
	AcquireLease(ctx context.Context, provider string, staleBefore time.Time) error
	ReleaseLease(ctx context.Context, provider string) error
	MarkSuccess(ctx context.Context, provider, cursor string, fullSync bool, quotaCharged int) error
	MarkError(ctx context.Context, provider, message string, quotaCharged int) error
	ResetQuotaIfElapsed(ctx context.Context, provider string, nextReset time.Time) (bool, error)
}

// JobRepositoryInterface defines the contract for job data access.
type JobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	FindActive(ctx context.Context, contentRecordID string) (*domain.Job, error)
	HasCompleted(ctx context.Context, contentRecordID string) (bool, error)
	List(ctx context.Context, status string, limit, offset int) ([]*domain.Job, error)
	Count(ctx context.Context, status string) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	ClaimOldestPending(ctx context.Context) (*domain.Job, error)
	UpdateProgress(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id, result string) error
	Requeue(ctx context.Context, id, message string) error
	RetryFailed(ctx context.Context, id string) error
	Fail(ctx context.Context, id, message string) error
}

// VoteRepositoryInterface defines the contract for validation vote access.
type VoteRepositoryInterface interface {
	Create(ctx context.Context, vote *domain.ValidationVote) error
	ListByChunk(ctx context.Context, chunkID string) ([]*domain.ValidationVote, error)
	ListByRecord(ctx context.Context, contentRecordID string) ([]*domain.ValidationVote, error)
}

// RunRepositoryInterface defines the contract for sync run history access.
type RunRepositoryInterface interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	ListRecent(ctx context.Context, limit int) ([]*domain.SyncRun, error)
}

// Compile-time interface checks.
var (
	_ ContentRepositoryInterface   = (*ContentRepository)(nil)
	_ SyncStateRepositoryInterface = (*SyncStateRepository)(nil)
	_ JobRepositoryInterface       = (*JobRepository)(nil)
	_ VoteRepositoryInterface      = (*VoteRepository)(nil)
	_ RunRepositoryInterface       = (*RunRepository)(nil)
)
