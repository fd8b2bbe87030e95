package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimeuniverse/contentsync/internal/events"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// AutoEnqueuer subscribes to content upsert events and enqueues a
// derived-work job for every new or changed media record. Non-media
// records and records that already have a completed job are skipped.
type AutoEnqueuer struct {
	svc  *Service
	repo completedChecker
	log  logger.Logger
}

// completedChecker is the slice of the job repository the enqueuer
// needs.
type completedChecker interface {
	HasCompleted(ctx context.Context, contentRecordID string) (bool, error)
}

// NewAutoEnqueuer creates an upsert event handler that feeds the queue.
func NewAutoEnqueuer(svc *Service, repo completedChecker, log logger.Logger) *AutoEnqueuer {
	return &AutoEnqueuer{svc: svc, repo: repo, log: log}
}

// HandleContentUpserted enqueues a job for a media upsert. Returning an
// error leaves the event unacknowledged so it is redelivered; a full
// queue is therefore retried rather than dropped.
func (a *AutoEnqueuer) HandleContentUpserted(ctx context.Context, event events.ContentUpserted) error {
	if event.Kind != "media" {
		return nil
	}

	done, err := a.repo.HasCompleted(ctx, event.ContentRecordID)
	if err != nil {
		return fmt.Errorf("failed to check completed jobs: %w", err)
	}
	if done && event.Change == events.ChangeCreated {
		return nil
	}
	if done && event.Change == events.ChangeUpdated {
		// Content changed, so the stored result is stale; a fresh job
		// supersedes it.
		a.log.Info("re-enqueueing changed media record",
			logger.String("content_record_id", event.ContentRecordID),
		)
	}

	job, _, enqErr := a.svc.Enqueue(ctx, event.ContentRecordID, "")
	if errors.Is(enqErr, ErrQueueFull) {
		a.log.Warn("job queue full, deferring auto-enqueue",
			logger.String("content_record_id", event.ContentRecordID),
		)
		return enqErr
	}
	if enqErr != nil {
		return enqErr
	}

	a.log.Debug("auto-enqueued job",
		logger.String("job_id", job.ID),
		logger.String("content_record_id", event.ContentRecordID),
		logger.String("change", string(event.Change)),
	)

	return nil
}

// Compile-time interface check.
var _ events.Handler = (*AutoEnqueuer)(nil)
