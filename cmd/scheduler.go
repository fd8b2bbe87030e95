package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/aimeuniverse/contentsync/internal/coordination"
	"github.com/aimeuniverse/contentsync/internal/logger"
	"github.com/aimeuniverse/contentsync/internal/syncer"
)

// schedulerCommand starts the cron-driven sync scheduler.
func schedulerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Start the periodic sync scheduler",
		Long: `Start the scheduler that triggers sync runs on a cron schedule. A
Redis lock ensures only one scheduler instance fires per tick, so the
scheduler can run on every node.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduler(cmd.Context())
		},
	}
}

func runScheduler(parent context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if !cfg.Scheduler.Enabled {
		return errors.New("scheduler is disabled in configuration")
	}

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

	orchestrator, orchErr := buildOrchestrator(cfg, repos, redisClient, log)
	if orchErr != nil {
		return orchErr
	}

	// The tick lock outlives a single tick by the sync lease TTL, which
	// covers clock skew between scheduler nodes.
	lockKey := cfg.Redis.Prefix + ":scheduler:tick"
	lock := coordination.NewTickLock(redisClient, lockKey, cfg.Sync.LeaseTTL)

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, addErr := c.AddFunc(cfg.Scheduler.CronSpec, func() {
		runTick(ctx, orchestrator, lock, log)
	})
	if addErr != nil {
		return addErr
	}

	log.Info("scheduler started",
		logger.String("cron_spec", cfg.Scheduler.CronSpec),
		logger.String("lock_key", lock.Key()))

	c.Start()
	<-ctx.Done()

	log.Info("scheduler stopping")
	<-c.Stop().Done()

	return nil
}

// runTick runs one scheduled sync pass if the tick lock can be taken.
func runTick(ctx context.Context, orchestrator *syncer.Orchestrator, lock *coordination.TickLock, log logger.Logger) {
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		log.Error("failed to acquire tick lock", logger.Err(err))
		return
	}
	if !acquired {
		log.Debug("tick lock held elsewhere, skipping")
		return
	}
	defer func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil &&
			!errors.Is(releaseErr, coordination.ErrLockNotHeld) {
			log.Warn("failed to release tick lock", logger.Err(releaseErr))
		}
	}()

	report, runErr := orchestrator.Run(ctx, syncer.Request{})
	if runErr != nil {
		log.Error("scheduled sync failed", logger.Err(runErr))
		return
	}

	log.Info("scheduled sync completed",
		logger.String("run_id", report.RunID),
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
		logger.Int("skipped", report.Skipped))
}
