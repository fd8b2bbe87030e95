package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// PoolState represents the current state of the worker pool.
type PoolState int32

const (
	// PoolStateStopped means the pool is not running.
	PoolStateStopped PoolState = iota
	// PoolStateRunning means the pool is actively processing jobs.
	PoolStateRunning
	// PoolStateDraining means the pool is shutting down gracefully.
	PoolStateDraining
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// JobHandler processes one claimed job to a terminal or requeued state.
type JobHandler func(ctx context.Context, job *domain.Job) error

// PoolConfig holds worker pool settings.
type PoolConfig struct {
	// PoolSize is the number of concurrent job slots.
	PoolSize int
	// DrainTimeout bounds the wait for in-flight jobs during Stop.
	DrainTimeout time.Duration
}

// Pool bounds concurrent job processing with a semaphore. Claimed jobs
// are handed to the handler; the pool itself knows nothing about the
// queue or backends.
type Pool struct {
	cfg     PoolConfig
	handler JobHandler
	log     logger.Logger
	state   atomic.Int32
	sem     chan struct{}
	wg      sync.WaitGroup
	stopCh  chan struct{}

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a worker pool.
func NewPool(cfg PoolConfig, handler JobHandler, log logger.Logger) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		return nil, errors.New("pool size must be positive")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	p := &Pool{
		cfg:     cfg,
		handler: handler,
		log:     log,
		sem:     make(chan struct{}, cfg.PoolSize),
		stopCh:  make(chan struct{}),
	}
	p.state.Store(int32(PoolStateStopped))

	return p, nil
}

// Start marks the pool as running.
func (p *Pool) Start() error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}

	p.log.Info("worker pool started", logger.Int("pool_size", p.cfg.PoolSize))
	return nil
}

// Stop drains the pool, waiting for in-flight jobs up to DrainTimeout.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("pool is not running")
	}

	p.log.Info("worker pool draining")
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.log.Warn("worker pool stop canceled")
	case <-time.After(p.cfg.DrainTimeout):
		p.log.Warn("worker pool drain timeout exceeded")
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit hands a claimed job to the pool, blocking while every slot is
// busy.
func (p *Pool) Submit(ctx context.Context, job *domain.Job) error {
	if p.State() != PoolStateRunning {
		return errors.New("pool is not running")
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("pool is stopping")
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()

		err := p.handler(ctx, job)

		p.processed.Add(1)
		if err != nil {
			p.failed.Add(1)
			p.log.Error("job processing failed",
				logger.String("job_id", job.ID),
				logger.Err(err),
			)
		} else {
			p.succeeded.Add(1)
		}
	}()

	return nil
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// BusyCount returns the number of occupied slots.
func (p *Pool) BusyCount() int {
	return len(p.sem)
}

// PoolStats holds point-in-time pool statistics.
type PoolStats struct {
	State     string `json:"state"`
	PoolSize  int    `json:"pool_size"`
	Busy      int    `json:"busy"`
	Processed int64  `json:"processed"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		State:     p.State().String(),
		PoolSize:  p.cfg.PoolSize,
		Busy:      p.BusyCount(),
		Processed: p.processed.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
	}
}
