// Package jobs implements the derived-work job queue: enqueueing with
// single-flight semantics, a bounded worker pool that claims pending
// jobs from the database, and pluggable processing backends.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// ErrQueueFull is returned when the pending backlog is at its limit.
var ErrQueueFull = errors.New("job queue is full")

// ErrUnknownBackend is returned when a job names a backend that is not
// registered.
var ErrUnknownBackend = errors.New("unknown job backend")

// ServiceConfig holds the queue-side tunables.
type ServiceConfig struct {
	// MaxAttempts is the per-job attempt budget.
	MaxAttempts int
	// QueueLimit caps the pending backlog; zero disables the cap.
	QueueLimit int
	// DefaultBackend is used when an enqueue names no backend.
	DefaultBackend string
}

// Service manages the job queue.
type Service struct {
	repo     database.JobRepositoryInterface
	backends map[string]Backend
	cfg      ServiceConfig
	log      logger.Logger
}

// NewService creates a job queue service over the given backends.
func NewService(
	repo database.JobRepositoryInterface,
	backends []Backend,
	cfg ServiceConfig,
	log logger.Logger,
) *Service {
	m := make(map[string]Backend, len(backends))
	for _, b := range backends {
		m[b.Name()] = b
	}

	return &Service{
		repo:     repo,
		backends: m,
		cfg:      cfg,
		log:      log,
	}
}

// Enqueue creates a pending job for a content record. At most one
// non-terminal job exists per record: when one is already in flight the
// existing job is returned with created false. A full queue is rejected
// with ErrQueueFull.
func (s *Service) Enqueue(ctx context.Context, contentRecordID, backend string) (job *domain.Job, created bool, err error) {
	if backend == "" {
		backend = s.cfg.DefaultBackend
	}
	if _, ok := s.backends[backend]; !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}

	if s.cfg.QueueLimit > 0 {
		pending, countErr := s.repo.Count(ctx, string(domain.JobStatusPending))
		if countErr != nil {
			return nil, false, fmt.Errorf("failed to check queue depth: %w", countErr)
		}
		if pending >= s.cfg.QueueLimit {
			return nil, false, ErrQueueFull
		}
	}

	job = &domain.Job{
		ContentRecordID: contentRecordID,
		Backend:         backend,
		Status:          domain.JobStatusPending,
		MaxAttempts:     s.cfg.MaxAttempts,
	}

	err = s.repo.Create(ctx, job)
	if errors.Is(err, database.ErrConflict) {
		existing, findErr := s.repo.FindActive(ctx, contentRecordID)
		if errors.Is(findErr, database.ErrNotFound) {
			// The conflicting job reached a terminal state between the
			// insert and the lookup. Retry the insert once.
			err = s.repo.Create(ctx, job)
		} else if findErr != nil {
			return nil, false, fmt.Errorf("failed to load in-flight job: %w", findErr)
		} else {
			s.log.Debug("reusing in-flight job",
				logger.String("job_id", existing.ID),
				logger.String("content_record_id", contentRecordID),
			)
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	s.log.Info("job enqueued",
		logger.String("job_id", job.ID),
		logger.String("content_record_id", contentRecordID),
		logger.String("backend", backend),
	)

	return job, true, nil
}

// Retry resets a failed job to pending with a fresh attempt budget.
func (s *Service) Retry(ctx context.Context, id string) (*domain.Job, error) {
	if err := s.repo.RetryFailed(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns jobs with optional status filtering, newest first.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*domain.Job, int, error) {
	jobs, err := s.repo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx, status)
	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// Stats returns job counts grouped by status.
func (s *Service) Stats(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}

// backend resolves a job's processing backend.
func (s *Service) backend(name string) (Backend, error) {
	b, ok := s.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return b, nil
}
