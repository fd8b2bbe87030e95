// Package providers implements the external content provider adapters.
// Each adapter fetches raw records from one provider, normalizes them
// into the canonical shape, and reports the quota cost it incurred.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimeuniverse/contentsync/internal/domain"
)

// Mode selects how an adapter enumerates its provider.
type Mode string

const (
	// ModeFull enumerates the provider's entire corpus, ignoring the cursor.
	ModeFull Mode = "full"
	// ModeIncremental fetches only records changed since the cursor.
	ModeIncremental Mode = "incremental"
)

// Batch is the result of one adapter fetch.
type Batch struct {
	// Records are the normalized records in provider order.
	Records []domain.RawRecord
	// NextCursor is the continuation token to store for the next
	// incremental sync. Empty means the provider supplied none.
	NextCursor string
	// Cost is the quota charge incurred by this fetch, reported even
	// when the fetch failed partway (see FetchError).
	Cost int
}

// Adapter is implemented by each provider integration.
type Adapter interface {
	// Name returns the provider's registry name.
	Name() string
	// FetchBatch retrieves one normalized batch. Full mode must ignore
	// the cursor; incremental mode must return only records changed
	// since the cursor's logical timestamp. Implementations bound all
	// network calls by ctx.
	FetchBatch(ctx context.Context, cursor string, mode Mode) (*Batch, error)
}

// FetchError wraps a provider failure while preserving the quota cost
// consumed before the failure, so the budget tracker can charge it.
type FetchError struct {
	Provider string
	Cost     int
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// CostOf extracts the charged cost from a fetch result. On error it
// consults FetchError so partial charges are never lost.
func CostOf(batch *Batch, err error) int {
	if batch != nil {
		return batch.Cost
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Cost
	}

	return 0
}

// Options holds the settings common to all adapters, extracted from the
// provider's configuration block.
type Options struct {
	// BaseURL is the provider API root.
	BaseURL string
	// APIKey authenticates requests where the provider requires it.
	APIKey string
	// PageSize bounds one provider page.
	PageSize int
	// MaxPages caps pagination within one fetch.
	MaxPages int
	// Timeout bounds each HTTP call.
	Timeout time.Duration
	// Extra carries provider-specific settings (playlist id, base id, ...).
	Extra map[string]string
}

// extra returns a provider-specific setting or its default.
func (o Options) extra(key, fallback string) string {
	if v, ok := o.Extra[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Registry maps provider names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns all registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
