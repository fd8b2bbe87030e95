package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aimeuniverse/contentsync/internal/events"
	"github.com/aimeuniverse/contentsync/internal/jobs"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// workerCommand starts the background job worker.
func workerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the background job worker",
		Long: `Start the job worker: claims pending jobs, runs them against the
configured processing backends, and auto-enqueues jobs for media
records as content upsert events arrive.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context())
		},
	}
}

func runWorker(parent context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, reposErr := openRepositories(ctx, cfg)
	if reposErr != nil {
		return reposErr
	}
	defer repos.Close()

	redisClient, redisErr := newRedisClient(ctx, cfg.Redis)
	if redisErr != nil {
		return redisErr
	}
	defer redisClient.Close()

	jobSvc := buildJobService(cfg, repos, log)

	var sink jobs.ResultSink
	store, storeErr := buildTranscriptStore(ctx, cfg, log)
	if storeErr != nil {
		return storeErr
	}
	if store != nil {
		sink = store
	}

	runner, runnerErr := jobs.NewRunner(
		repos.jobs,
		repos.content,
		jobSvc,
		sink,
		jobs.PoolConfig{
			PoolSize:     cfg.Jobs.PoolSize,
			DrainTimeout: cfg.Jobs.DrainTimeout,
		},
		jobs.RunnerConfig{
			PollInterval: cfg.Jobs.PollInterval,
			JobTimeout:   cfg.Jobs.JobTimeout,
		},
		log,
	)
	if runnerErr != nil {
		return runnerErr
	}

	enqueuer := jobs.NewAutoEnqueuer(jobSvc, repos.jobs, log)

	consumerID := consumerName()
	consumer := events.NewConsumer(redisClient, cfg.Redis.Prefix, consumerID, enqueuer, log)
	if startErr := consumer.Start(ctx); startErr != nil {
		return fmt.Errorf("failed to start event consumer: %w", startErr)
	}
	defer consumer.Stop()

	log.Info("worker started",
		logger.String("consumer_id", consumerID),
		logger.Int("pool_size", cfg.Jobs.PoolSize))

	return runner.Run(ctx)
}

// consumerName builds a stable-enough consumer identity for the stream
// consumer group.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
