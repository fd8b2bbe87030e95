package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/syncer"
)

// syncCommand runs a one-shot sync of some or all providers.
func syncCommand() *cobra.Command {
	var (
		providerNames []string
		force         bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a one-shot content sync",
		Long: `Run a single sync pass over the configured providers and print a
per-provider summary. Providers over their quota threshold are skipped
unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), providerNames, force)
		},
	}

	cmd.Flags().StringSliceVar(&providerNames, "providers", nil,
		"providers to sync (default all enabled)")
	cmd.Flags().BoolVar(&force, "force", false, "sync even when over the quota threshold")

	return cmd
}

func runSync(parent context.Context, providerNames []string, force bool) error {
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

	// Redis is optional for one-shot runs; without it upsert events are
	// simply not published.
	redisClient, redisErr := newRedisClient(ctx, cfg.Redis)
	if redisErr != nil {
		log.Warn("redis unavailable, upsert events disabled")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	orchestrator, orchErr := buildOrchestrator(cfg, repos, redisClient, log)
	if orchErr != nil {
		return orchErr
	}

	report, runErr := orchestrator.Run(ctx, syncer.Request{
		Providers: providerNames,
		Force:     force,
	})
	if runErr != nil {
		return fmt.Errorf("sync run failed: %w", runErr)
	}

	renderReport(report)

	if report.Failed > 0 {
		return fmt.Errorf("%d provider(s) failed", report.Failed)
	}

	return nil
}

// renderReport prints the per-provider outcomes as a table.
func renderReport(report *domain.SyncRunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Provider", "Status", "Mode", "Seen", "New", "Updated", "Quota", "Duration"})
	for _, p := range report.Providers {
		status := string(p.Status)
		if p.SkipReason != "" {
			status = fmt.Sprintf("%s (%s)", status, p.SkipReason)
		}
		t.AppendRow(table.Row{
			p.Provider,
			status,
			p.Mode,
			p.ItemsSeen,
			p.NewItems,
			p.UpdatedItems,
			p.QuotaCharged,
			(time.Duration(p.DurationMs) * time.Millisecond).String(),
		})
	}
	t.AppendFooter(table.Row{
		"total", "",
		"",
		report.TotalSeen,
		report.TotalNew,
		report.TotalUpdate,
		"", "",
	})
	t.Render()

	fmt.Printf("run %s: %d succeeded, %d failed, %d skipped\n",
		report.RunID, report.Succeeded, report.Failed, report.Skipped)
}
