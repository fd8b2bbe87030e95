package domain

import "time"

// ProviderOutcome classifies one provider's result within a sync run.
type ProviderOutcome string

const (
	// OutcomeSuccess means the provider synced without error.
	OutcomeSuccess ProviderOutcome = "success"
	// OutcomeError means the provider's sync failed.
	OutcomeError ProviderOutcome = "error"
	// OutcomeSkipped means the provider was not synced (busy or over quota).
	OutcomeSkipped ProviderOutcome = "skipped"
)

// ProviderReport holds one provider's results within a sync run.
type ProviderReport struct {
	Provider     string          `json:"provider"`
	Status       ProviderOutcome `json:"status"`
	Mode         string          `json:"mode,omitempty"`
	SkipReason   string          `json:"skip_reason,omitempty"`
	ItemsSeen    int             `json:"items_seen"`
	NewItems     int             `json:"new_items"`
	UpdatedItems int             `json:"updated_items"`
	Unchanged    int             `json:"unchanged_items"`
	QuotaCharged int             `json:"quota_charged"`
	Errors       []string        `json:"errors,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
}

// SyncRunReport aggregates per-provider outcomes for one orchestrator
// invocation. Constructed fresh per run and never mutated after return.
type SyncRunReport struct {
	RunID       string           `json:"run_id"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Providers   []ProviderReport `json:"providers"`
	TotalSeen   int              `json:"total_seen"`
	TotalNew    int              `json:"total_new"`
	TotalUpdate int              `json:"total_updated"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	Skipped     int              `json:"skipped"`
}

// Aggregate fills the run-level totals from the per-provider reports.
func (r *SyncRunReport) Aggregate() {
	r.TotalSeen, r.TotalNew, r.TotalUpdate = 0, 0, 0
	r.Succeeded, r.Failed, r.Skipped = 0, 0, 0

	for i := range r.Providers {
		p := &r.Providers[i]
		r.TotalSeen += p.ItemsSeen
		r.TotalNew += p.NewItems
		r.TotalUpdate += p.UpdatedItems

		switch p.Status {
		case OutcomeSuccess:
			r.Succeeded++
		case OutcomeError:
			r.Failed++
		case OutcomeSkipped:
			r.Skipped++
		}
	}
}

// SyncRun is a persisted record of one orchestrator invocation, kept as
// history for dashboards and aggregation.
type SyncRun struct {
	ID          string    `db:"id" json:"id"`
	StartedAt   time.Time `db:"started_at" json:"started_at"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
	Succeeded   int       `db:"succeeded" json:"succeeded"`
	Failed      int       `db:"failed" json:"failed"`
	Skipped     int       `db:"skipped" json:"skipped"`
	TotalSeen   int       `db:"total_seen" json:"total_seen"`
	TotalNew    int       `db:"total_new" json:"total_new"`
	TotalUpdate int       `db:"total_updated" json:"total_updated"`
	Detail      JSONBMap  `db:"detail" json:"detail,omitempty"`
}
