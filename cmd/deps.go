package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/aimeuniverse/contentsync/internal/config"
	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/events"
	"github.com/aimeuniverse/contentsync/internal/jobs"
	"github.com/aimeuniverse/contentsync/internal/logger"
	"github.com/aimeuniverse/contentsync/internal/providers"
	"github.com/aimeuniverse/contentsync/internal/quota"
	"github.com/aimeuniverse/contentsync/internal/reconcile"
	"github.com/aimeuniverse/contentsync/internal/storage"
	"github.com/aimeuniverse/contentsync/internal/syncer"
)

// repositories bundles the database repositories over one connection.
type repositories struct {
	db      *sqlx.DB
	content *database.ContentRepository
	states  *database.SyncStateRepository
	jobs    *database.JobRepository
	votes   *database.VoteRepository
	runs    *database.RunRepository
}

// openRepositories connects to PostgreSQL, applies migrations and
// builds the repositories.
func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, err
	}

	if migrateErr := database.Migrate(ctx, db); migrateErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", migrateErr)
	}

	return &repositories{
		db:      db,
		content: database.NewContentRepository(db),
		states:  database.NewSyncStateRepository(db),
		jobs:    database.NewJobRepository(db),
		votes:   database.NewVoteRepository(db),
		runs:    database.NewRunRepository(db),
	}, nil
}

// Close releases the database connection.
func (r *repositories) Close() error {
	return r.db.Close()
}

// newRedisClient creates and pings a Redis client.
func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// buildOrchestrator wires the sync pipeline: adapters, quota policy,
// reconciler and event publisher.
func buildOrchestrator(
	cfg *config.Config,
	repos *repositories,
	redisClient *redis.Client,
	log logger.Logger,
) (*syncer.Orchestrator, error) {
	registry := providers.BuildRegistry(cfg)
	if len(registry.Names()) == 0 {
		return nil, cfg.RequireProviders()
	}

	loc, locErr := time.LoadLocation(cfg.Sync.QuotaTimezone)
	if locErr != nil {
		return nil, fmt.Errorf("invalid quota timezone %q: %w", cfg.Sync.QuotaTimezone, locErr)
	}

	policy := &quota.Policy{
		Threshold:         cfg.Sync.QuotaThreshold,
		Location:          loc,
		FullSyncStaleness: cfg.Sync.FullSyncStaleness,
	}

	// The publisher stays a nil interface when Redis is absent so the
	// reconciler skips event emission entirely.
	var publisher reconcile.UpsertPublisher
	if redisClient != nil {
		if p := events.NewPublisher(redisClient, cfg.Redis.Prefix); p != nil {
			publisher = p
		}
	}

	reconciler := reconcile.NewReconciler(repos.content, publisher, log)

	return syncer.NewOrchestrator(
		registry,
		repos.states,
		repos.runs,
		reconciler,
		policy,
		syncer.Options{
			LeaseTTL:     cfg.Sync.LeaseTTL,
			FetchTimeout: cfg.Sync.FetchTimeout,
			Allowance: func(provider string) int {
				return providers.DailyQuota(cfg, provider)
			},
		},
		log,
	), nil
}

// buildJobService constructs the queue service with its configured
// backends.
func buildJobService(cfg *config.Config, repos *repositories, log logger.Logger) *jobs.Service {
	backends := make([]jobs.Backend, 0, len(cfg.Jobs.Backends))
	for name, bc := range cfg.Jobs.Backends {
		backends = append(backends, jobs.NewHTTPBackend(name, bc.URL, bc.APIKey))
	}

	return jobs.NewService(repos.jobs, backends, jobs.ServiceConfig{
		MaxAttempts:    cfg.Jobs.MaxAttempts,
		QueueLimit:     cfg.Jobs.QueueLimit,
		DefaultBackend: cfg.Jobs.DefaultBackend,
	}, log)
}

// buildTranscriptStore connects to Elasticsearch and ensures the
// transcript index. Returns nil without error when no addresses are
// configured; transcript search is then disabled.
func buildTranscriptStore(
	ctx context.Context,
	cfg *config.Config,
	log logger.Logger,
) (*storage.TranscriptStore, error) {
	if len(cfg.Elasticsearch.Addresses) == 0 {
		log.Warn("elasticsearch not configured, transcript search disabled")
		return nil, nil
	}

	client, err := storage.NewClient(cfg.Elasticsearch, log)
	if err != nil {
		return nil, err
	}

	store := storage.NewTranscriptStore(client, cfg.Elasticsearch.TranscriptIndex, log)
	if ensureErr := store.EnsureIndex(ctx); ensureErr != nil {
		return nil, ensureErr
	}

	return store, nil
}
