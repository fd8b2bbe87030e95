package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/jobs"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

func TestNewPoolValidation(t *testing.T) {
	handler := func(context.Context, *domain.Job) error { return nil }

	_, err := jobs.NewPool(jobs.PoolConfig{PoolSize: 0}, handler, logger.NewNop())
	assert.Error(t, err)

	_, err = jobs.NewPool(jobs.PoolConfig{PoolSize: 1}, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestPoolLifecycle(t *testing.T) {
	handler := func(context.Context, *domain.Job) error { return nil }
	pool, err := jobs.NewPool(jobs.PoolConfig{PoolSize: 1, DrainTimeout: time.Second}, handler, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, jobs.PoolStateStopped, pool.State())

	require.NoError(t, pool.Start())
	assert.Equal(t, jobs.PoolStateRunning, pool.State())
	assert.Error(t, pool.Start(), "double start must fail")

	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, jobs.PoolStateStopped, pool.State())
	assert.Error(t, pool.Stop(context.Background()), "stopping a stopped pool must fail")
}

func TestPoolSubmitRequiresRunning(t *testing.T) {
	handler := func(context.Context, *domain.Job) error { return nil }
	pool, err := jobs.NewPool(jobs.PoolConfig{PoolSize: 1, DrainTimeout: time.Second}, handler, logger.NewNop())
	require.NoError(t, err)

	err = pool.Submit(context.Background(), &domain.Job{ID: "job-1"})
	assert.Error(t, err)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const poolSize = 2

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	release := make(chan struct{})

	handler := func(context.Context, *domain.Job) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}

	pool, err := jobs.NewPool(jobs.PoolConfig{PoolSize: poolSize, DrainTimeout: 5 * time.Second}, handler, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, pool.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, pool.Submit(ctx, &domain.Job{ID: "job-1"}))
	require.NoError(t, pool.Submit(ctx, &domain.Job{ID: "job-2"}))

	// Both slots are busy; a third submit must block until released.
	blockedCtx, blockedCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer blockedCancel()
	err = pool.Submit(blockedCtx, &domain.Job{ID: "job-3"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, pool.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, poolSize, maxInFlight)
}

func TestPoolCountsOutcomes(t *testing.T) {
	handler := func(_ context.Context, job *domain.Job) error {
		if job.ID == "bad" {
			return errors.New("boom")
		}
		return nil
	}

	pool, err := jobs.NewPool(jobs.PoolConfig{PoolSize: 2, DrainTimeout: time.Second}, handler, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, pool.Start())

	require.NoError(t, pool.Submit(context.Background(), &domain.Job{ID: "good"}))
	require.NoError(t, pool.Submit(context.Background(), &domain.Job{ID: "bad"}))
	require.NoError(t, pool.Stop(context.Background()))

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, "stopped", stats.State)
}
