// Package quota implements the per-provider daily budget policy.
// It is pure bookkeeping over sync state and a clock; persistence of the
// counters happens through conditional updates in the database layer, so
// the policy itself is safe to evaluate from concurrent goroutines.
package quota

import (
	"fmt"
	"time"

	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/providers"
)

// Policy holds the budget rules shared by all providers.
type Policy struct {
	// Threshold is the fraction of the allowance above which syncs are
	// skipped unless forced.
	Threshold float64
	// Location is the reference timezone for the daily reset boundary.
	Location *time.Location
	// FullSyncStaleness is how old the last full sync may get before a
	// full sync is preferred over an incremental one.
	FullSyncStaleness time.Duration
}

// Decision is the outcome of a budget check.
type Decision struct {
	// Allowed reports whether the provider may sync now.
	Allowed bool
	// Mode is the suggested sync mode when allowed.
	Mode providers.Mode
	// Reason explains a skip; empty when allowed.
	Reason string
}

// CanRun decides whether a provider may sync and in which mode.
// Quota exhaustion is a planned skip, not an error. A forced run
// bypasses the threshold and always syncs in full mode.
func (p *Policy) CanRun(state *domain.SyncState, allowance int, force bool, now time.Time) Decision {
	if force {
		return Decision{Allowed: true, Mode: providers.ModeFull}
	}

	if allowance > 0 {
		limit := p.Threshold * float64(allowance)
		if float64(state.QuotaUsedToday) > limit {
			return Decision{
				Allowed: false,
				Reason: fmt.Sprintf(
					"quota threshold exceeded: used %d of %d daily units",
					state.QuotaUsedToday, allowance,
				),
			}
		}
	}

	return Decision{Allowed: true, Mode: p.SuggestMode(state, now)}
}

// SuggestMode prefers a cheap incremental sync with the stored cursor,
// falling back to a full sync when no cursor exists or the last full
// sync is stale.
func (p *Policy) SuggestMode(state *domain.SyncState, now time.Time) providers.Mode {
	if state.Cursor == "" {
		return providers.ModeFull
	}
	if state.LastFullSyncAt == nil {
		return providers.ModeFull
	}
	if now.Sub(*state.LastFullSyncAt) > p.FullSyncStaleness {
		return providers.ModeFull
	}
	return providers.ModeIncremental
}

// NextReset returns the upcoming daily reset boundary: midnight of the
// next day in the reference timezone.
func (p *Policy) NextReset(now time.Time) time.Time {
	local := now.In(p.Location)
	year, month, day := local.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, p.Location)
}
