package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aimeuniverse/contentsync/internal/api"
	"github.com/aimeuniverse/contentsync/internal/consensus"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

const shutdownTimeout = 15 * time.Second

// httpdCommand starts the HTTP API server.
func httpdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server exposing sync triggers, the job queue,
validation votes and the content change feed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHTTPD(cmd.Context())
		},
	}
}

func runHTTPD(parent context.Context) error {
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

	orchestrator, orchErr := buildOrchestrator(cfg, repos, redisClient, log)
	if orchErr != nil {
		return orchErr
	}

	jobSvc := buildJobService(cfg, repos, log)

	tracker := consensus.NewTracker(repos.votes, log)

	store, storeErr := buildTranscriptStore(ctx, cfg, log)
	if storeErr != nil {
		return storeErr
	}

	deps := api.Deps{
		Sync:    orchestrator,
		Jobs:    jobSvc,
		Votes:   tracker,
		States:  repos.states,
		Content: repos.content,
		Runs:    repos.runs,
		Logger:  log,
	}
	if store != nil {
		deps.Transcripts = store
	}

	server := api.NewServer(cfg.Server, deps)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", logger.String("address", cfg.Server.Address))
		errCh <- server.Start()
	}()

	select {
	case serveErr := <-errCh:
		if serveErr != nil {
			return fmt.Errorf("http server failed: %w", serveErr)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", shutdownErr)
	}

	return nil
}
