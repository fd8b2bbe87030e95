package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/providers"
)

// statusCommand prints per-provider sync state and job queue counts.
func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state and job queue status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context())
		},
	}
}

func runStatus(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	repos, reposErr := openRepositories(ctx, cfg)
	if reposErr != nil {
		return reposErr
	}
	defer repos.Close()

	states, listErr := repos.states.List(ctx)
	if listErr != nil {
		return fmt.Errorf("failed to list sync states: %w", listErr)
	}

	counts, countErr := repos.content.CountByProvider(ctx)
	if countErr != nil {
		return fmt.Errorf("failed to count content records: %w", countErr)
	}

	quotas := make(map[string]int, len(states))
	for _, s := range states {
		quotas[s.Provider] = providers.DailyQuota(cfg, s.Provider)
	}

	renderStates(states, counts, quotas)

	jobCounts, jobErr := repos.jobs.CountByStatus(ctx)
	if jobErr != nil {
		return fmt.Errorf("failed to count jobs: %w", jobErr)
	}
	renderJobCounts(jobCounts)

	return nil
}

func renderStates(states []*domain.SyncState, counts, quotas map[string]int) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Provider", "Records", "Last Sync", "Quota Used", "Syncing", "Errors", "Last Error"})
	for _, s := range states {
		quota := fmt.Sprintf("%d", s.QuotaUsedToday)
		if daily, ok := quotas[s.Provider]; ok && daily > 0 {
			quota = fmt.Sprintf("%d/%d", s.QuotaUsedToday, daily)
		}
		t.AppendRow(table.Row{
			s.Provider,
			counts[s.Provider],
			formatTimePtr(s.LastSuccessfulSyncAt),
			quota,
			s.IsSyncing,
			s.ConsecutiveErrorCount,
			derefString(s.LastError),
		})
	}
	t.Render()
}

func renderJobCounts(counts map[string]int) {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Job Status", "Count"})
	for _, status := range statuses {
		t.AppendRow(table.Row{status, counts[status]})
	}
	t.Render()
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil {
		return "never"
	}
	return ts.Format(time.RFC3339)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
