package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// ResultSink receives completed job results for secondary storage, such
// as the transcript search index. The job row remains the canonical
// result; sink failures are logged but never fail the job.
type ResultSink interface {
	StoreResult(ctx context.Context, job *domain.Job, rec *domain.ContentRecord, result string) error
}

// RunnerConfig holds the claim loop tunables.
type RunnerConfig struct {
	// PollInterval is the wait between claim attempts when the queue is
	// empty.
	PollInterval time.Duration
	// JobTimeout bounds one backend processing call.
	JobTimeout time.Duration
}

// Runner drives the job queue: it claims pending jobs from the database
// and executes them on the worker pool until its context is canceled.
type Runner struct {
	jobs    database.JobRepositoryInterface
	content database.ContentRepositoryInterface
	svc     *Service
	pool    *Pool
	sink    ResultSink
	cfg     RunnerConfig
	log     logger.Logger
}

// NewRunner creates a job runner with its own worker pool.
func NewRunner(
	jobsRepo database.JobRepositoryInterface,
	contentRepo database.ContentRepositoryInterface,
	svc *Service,
	sink ResultSink,
	poolCfg PoolConfig,
	cfg RunnerConfig,
	log logger.Logger,
) (*Runner, error) {
	r := &Runner{
		jobs:    jobsRepo,
		content: contentRepo,
		svc:     svc,
		sink:    sink,
		cfg:     cfg,
		log:     log,
	}

	pool, err := NewPool(poolCfg, r.Process, log)
	if err != nil {
		return nil, err
	}
	r.pool = pool

	return r, nil
}

// PoolStats exposes the pool's statistics for the status endpoints.
func (r *Runner) PoolStats() PoolStats {
	return r.pool.Stats()
}

// Run claims and processes jobs until ctx is canceled, then drains the
// pool.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.pool.Start(); err != nil {
		return err
	}

	r.log.Info("job runner started",
		logger.Duration("poll_interval", r.cfg.PollInterval),
	)

	for {
		select {
		case <-ctx.Done():
			return r.drain()
		default:
		}

		job, err := r.jobs.ClaimOldestPending(ctx)
		if errors.Is(err, database.ErrNotFound) {
			if waitErr := sleepCtx(ctx, r.cfg.PollInterval); waitErr != nil {
				return r.drain()
			}
			continue
		}
		if err != nil {
			r.log.Error("failed to claim job", logger.Err(err))
			if waitErr := sleepCtx(ctx, r.cfg.PollInterval); waitErr != nil {
				return r.drain()
			}
			continue
		}

		if submitErr := r.pool.Submit(ctx, job); submitErr != nil {
			// The claim already transitioned the job to processing;
			// put it back so another runner can pick it up.
			if requeueErr := r.jobs.Requeue(ctx, job.ID, "worker pool unavailable"); requeueErr != nil {
				r.log.Error("failed to requeue unsubmitted job",
					logger.String("job_id", job.ID),
					logger.Err(requeueErr),
				)
			}
			return r.drain()
		}
	}
}

// drain stops the pool, waiting for in-flight jobs.
func (r *Runner) drain() error {
	drainCtx, cancel := context.WithTimeout(context.Background(), r.pool.cfg.DrainTimeout)
	defer cancel()
	return r.pool.Stop(drainCtx)
}

// Process executes one claimed job to a terminal or requeued state. It
// is the pool's handler and is exported for direct use in one-shot
// processing.
func (r *Runner) Process(ctx context.Context, job *domain.Job) error {
	log := r.log.With(
		logger.String("job_id", job.ID),
		logger.String("backend", job.Backend),
		logger.Int("attempt", job.Attempts),
	)

	rec, recErr := r.content.GetByID(ctx, job.ContentRecordID)
	if recErr != nil {
		// A missing record cannot recover on retry.
		return r.fail(ctx, job, fmt.Errorf("failed to load content record: %w", recErr))
	}

	backend, backendErr := r.svc.backend(job.Backend)
	if backendErr != nil {
		return r.fail(ctx, job, backendErr)
	}

	jobCtx := ctx
	if r.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, r.cfg.JobTimeout)
		defer cancel()
	}

	result, procErr := backend.Process(jobCtx, job, rec, func(progress int) {
		if updErr := r.jobs.UpdateProgress(ctx, job.ID, progress); updErr != nil {
			log.Debug("failed to update job progress", logger.Err(updErr))
		}
	})
	if procErr != nil {
		return r.finishAttempt(ctx, job, procErr)
	}

	if completeErr := r.jobs.Complete(ctx, job.ID, result); completeErr != nil {
		return fmt.Errorf("failed to complete job: %w", completeErr)
	}

	log.Info("job completed", logger.Int("result_bytes", len(result)))

	if r.sink != nil {
		if sinkErr := r.sink.StoreResult(ctx, job, rec, result); sinkErr != nil {
			log.Warn("failed to store job result in sink", logger.Err(sinkErr))
		}
	}

	return nil
}

// finishAttempt requeues a failed attempt while the budget allows,
// failing the job terminally on the last attempt.
func (r *Runner) finishAttempt(ctx context.Context, job *domain.Job, cause error) error {
	if job.Attempts < job.MaxAttempts {
		requeueErr := r.jobs.Requeue(ctx, job.ID, cause.Error())
		if requeueErr == nil {
			r.log.Warn("job attempt failed, requeued",
				logger.String("job_id", job.ID),
				logger.Int("attempt", job.Attempts),
				logger.Int("max_attempts", job.MaxAttempts),
				logger.Err(cause),
			)
			return cause
		}
		if !errors.Is(requeueErr, database.ErrConflict) {
			return fmt.Errorf("failed to requeue job: %w", requeueErr)
		}
		// Attempts ran out between the check and the update.
	}

	return r.fail(ctx, job, cause)
}

// fail marks the job terminally failed.
func (r *Runner) fail(ctx context.Context, job *domain.Job, cause error) error {
	if failErr := r.jobs.Fail(ctx, job.ID, cause.Error()); failErr != nil {
		return fmt.Errorf("failed to mark job failed: %w", failErr)
	}

	r.log.Error("job failed",
		logger.String("job_id", job.ID),
		logger.Int("attempts", job.Attempts),
		logger.Err(cause),
	)

	return cause
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
