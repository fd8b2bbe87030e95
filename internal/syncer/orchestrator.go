// Package syncer implements the sync orchestrator. It fans one run out
// across the configured providers, guarding each with a database lease
// and the daily quota budget, and aggregates the per-provider outcomes
// into a persisted run report.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/logger"
	"github.com/aimeuniverse/contentsync/internal/providers"
	"github.com/aimeuniverse/contentsync/internal/quota"
	"github.com/aimeuniverse/contentsync/internal/reconcile"
)

// ErrNoProviders is returned when a run targets no known provider.
var ErrNoProviders = errors.New("no providers to sync")

// ReconcilerInterface is the upsert boundary the orchestrator drives.
type ReconcilerInterface interface {
	Reconcile(ctx context.Context, provider string, records []domain.RawRecord) (*reconcile.Result, error)
}

// Request describes one orchestrator invocation.
type Request struct {
	// Providers limits the run to the named providers. Empty means all
	// registered providers.
	Providers []string
	// Force overrides the quota threshold and runs a full sync. It does
	// not override an active lease.
	Force bool
}

// Options carries the orchestrator's tunables.
type Options struct {
	// LeaseTTL is how long a held lease blocks other runs before it is
	// considered abandoned and reclaimed.
	LeaseTTL time.Duration
	// FetchTimeout bounds one adapter fetch.
	FetchTimeout time.Duration
	// Allowance returns the daily quota allowance for a provider.
	Allowance func(provider string) int
}

// Orchestrator coordinates sync runs across providers.
type Orchestrator struct {
	registry   *providers.Registry
	states     database.SyncStateRepositoryInterface
	runs       database.RunRepositoryInterface
	reconciler ReconcilerInterface
	policy     *quota.Policy
	opts       Options
	log        logger.Logger
	now        func() time.Time
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(
	registry *providers.Registry,
	states database.SyncStateRepositoryInterface,
	runs database.RunRepositoryInterface,
	reconciler ReconcilerInterface,
	policy *quota.Policy,
	opts Options,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		states:     states,
		runs:       runs,
		reconciler: reconciler,
		policy:     policy,
		opts:       opts,
		log:        log,
		now:        time.Now,
	}
}

// Run executes one sync pass. Providers sync concurrently and in
// isolation: one provider failing or skipping never affects the others.
// The returned report is complete even when individual providers failed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*domain.SyncRunReport, error) {
	targets := req.Providers
	if len(targets) == 0 {
		targets = o.registry.Names()
	}
	sort.Strings(targets)

	if len(targets) == 0 {
		return nil, ErrNoProviders
	}

	report := &domain.SyncRunReport{
		RunID:     uuid.New().String(),
		StartedAt: o.now(),
		Providers: make([]domain.ProviderReport, len(targets)),
	}

	o.log.Info("starting sync run",
		logger.String("run_id", report.RunID),
		logger.Any("providers", targets),
		logger.Bool("force", req.Force),
	)

	var wg sync.WaitGroup
	for i, name := range targets {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			report.Providers[i] = o.syncProvider(ctx, name, req.Force)
		}(i, name)
	}
	wg.Wait()

	report.CompletedAt = o.now()
	report.Aggregate()

	if err := o.persistRun(ctx, report); err != nil {
		o.log.Error("failed to persist sync run",
			logger.String("run_id", report.RunID),
			logger.Err(err),
		)
	}

	o.log.Info("sync run completed",
		logger.String("run_id", report.RunID),
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
		logger.Int("skipped", report.Skipped),
		logger.Int("new", report.TotalNew),
		logger.Int("updated", report.TotalUpdate),
	)

	return report, nil
}

// syncProvider runs one provider end to end and never returns an error;
// failures are captured in the report so sibling providers keep going.
func (o *Orchestrator) syncProvider(ctx context.Context, name string, force bool) domain.ProviderReport {
	started := o.now()
	rep := domain.ProviderReport{Provider: name}
	defer func() {
		rep.DurationMs = o.now().Sub(started).Milliseconds()
	}()

	adapter, ok := o.registry.Get(name)
	if !ok {
		rep.Status = domain.OutcomeError
		rep.Errors = append(rep.Errors, fmt.Sprintf("unknown provider %q", name))
		return rep
	}

	state, err := o.states.GetOrCreate(ctx, name)
	if err != nil {
		rep.Status = domain.OutcomeError
		rep.Errors = append(rep.Errors, err.Error())
		return rep
	}

	state, err = o.resetQuota(ctx, state)
	if err != nil {
		rep.Status = domain.OutcomeError
		rep.Errors = append(rep.Errors, err.Error())
		return rep
	}

	decision := o.policy.CanRun(state, o.allowance(name), force, o.now())
	if !decision.Allowed {
		o.log.Info("skipping provider sync",
			logger.String("provider", name),
			logger.String("reason", decision.Reason),
		)
		rep.Status = domain.OutcomeSkipped
		rep.SkipReason = decision.Reason
		return rep
	}

	if !o.acquireLease(ctx, name, state, &rep) {
		return rep
	}

	o.runProvider(ctx, adapter, state, decision.Mode, &rep)
	return rep
}

// resetQuota rolls the daily counter when the reset boundary passed.
func (o *Orchestrator) resetQuota(ctx context.Context, state *domain.SyncState) (*domain.SyncState, error) {
	reset, err := o.states.ResetQuotaIfElapsed(ctx, state.Provider, o.policy.NextReset(o.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to reset quota: %w", err)
	}
	if reset {
		o.log.Info("daily quota reset", logger.String("provider", state.Provider))
		refreshed, getErr := o.states.GetOrCreate(ctx, state.Provider)
		if getErr != nil {
			return nil, getErr
		}
		return refreshed, nil
	}
	return state, nil
}

// acquireLease takes the provider's single-flight lease, reclaiming a
// stale one left by a crashed run. Returns false with the report filled
// when another run holds the lease.
func (o *Orchestrator) acquireLease(
	ctx context.Context,
	name string,
	state *domain.SyncState,
	rep *domain.ProviderReport,
) bool {
	now := o.now()
	if state.LeaseExpired(now, o.opts.LeaseTTL) {
		o.log.Warn("reclaiming stale sync lease",
			logger.String("provider", name),
			logger.Time("sync_started_at", derefTime(state.SyncStartedAt)),
		)
	}

	err := o.states.AcquireLease(ctx, name, now.Add(-o.opts.LeaseTTL))
	if errors.Is(err, database.ErrLeaseHeld) {
		rep.Status = domain.OutcomeSkipped
		rep.SkipReason = "sync already in progress"
		return false
	}
	if err != nil {
		rep.Status = domain.OutcomeError
		rep.Errors = append(rep.Errors, err.Error())
		return false
	}
	return true
}

// runProvider fetches, reconciles and records the outcome. The lease is
// always released through MarkSuccess or MarkError, charging whatever
// quota the fetch consumed.
func (o *Orchestrator) runProvider(
	ctx context.Context,
	adapter providers.Adapter,
	state *domain.SyncState,
	mode providers.Mode,
	rep *domain.ProviderReport,
) {
	name := adapter.Name()
	rep.Mode = string(mode)

	fetchCtx := ctx
	if o.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, o.opts.FetchTimeout)
		defer cancel()
	}

	batch, fetchErr := adapter.FetchBatch(fetchCtx, state.Cursor, mode)
	cost := providers.CostOf(batch, fetchErr)
	rep.QuotaCharged = cost

	if fetchErr != nil {
		o.markError(ctx, name, fetchErr, cost, rep)
		return
	}

	result, recErr := o.reconciler.Reconcile(ctx, name, batch.Records)
	if result != nil {
		rep.ItemsSeen = len(batch.Records)
		rep.NewItems = result.Created
		rep.UpdatedItems = result.Updated
		rep.Unchanged = result.Unchanged
	}
	if recErr != nil {
		o.markError(ctx, name, recErr, cost, rep)
		return
	}

	cursor := batch.NextCursor
	if cursor == "" {
		cursor = state.Cursor
	}

	if err := o.states.MarkSuccess(ctx, name, cursor, mode == providers.ModeFull, cost); err != nil {
		o.markError(ctx, name, err, 0, rep)
		return
	}

	rep.Status = domain.OutcomeSuccess
}

// markError records a provider failure, charging any quota consumed,
// and releases the lease. When recording the outcome itself fails the
// lease is still released so the provider is not locked until the TTL
// reclaims it.
func (o *Orchestrator) markError(ctx context.Context, name string, cause error, cost int, rep *domain.ProviderReport) {
	rep.Status = domain.OutcomeError
	rep.Errors = append(rep.Errors, cause.Error())

	o.log.Error("provider sync failed",
		logger.String("provider", name),
		logger.Err(cause),
	)

	if err := o.states.MarkError(ctx, name, cause.Error(), cost); err != nil {
		o.log.Error("failed to record sync error",
			logger.String("provider", name),
			logger.Err(err),
		)
		if releaseErr := o.states.ReleaseLease(ctx, name); releaseErr != nil {
			o.log.Error("failed to release sync lease",
				logger.String("provider", name),
				logger.Err(releaseErr),
			)
		}
	}
}

// persistRun stores the run summary for the history endpoint.
func (o *Orchestrator) persistRun(ctx context.Context, report *domain.SyncRunReport) error {
	run := &domain.SyncRun{
		ID:          report.RunID,
		StartedAt:   report.StartedAt,
		CompletedAt: report.CompletedAt,
		Succeeded:   report.Succeeded,
		Failed:      report.Failed,
		Skipped:     report.Skipped,
		TotalSeen:   report.TotalSeen,
		TotalNew:    report.TotalNew,
		TotalUpdate: report.TotalUpdate,
		Detail: domain.JSONBMap{
			"providers": report.Providers,
		},
	}
	return o.runs.Create(ctx, run)
}

// allowance resolves the provider's daily quota allowance; zero means
// unlimited.
func (o *Orchestrator) allowance(name string) int {
	if o.opts.Allowance == nil {
		return 0
	}
	return o.opts.Allowance(name)
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
