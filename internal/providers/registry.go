package providers

import (
	"github.com/aimeuniverse/contentsync/internal/config"
)

// BuildRegistry constructs adapters for every enabled provider in the
// configuration. Unknown provider names are skipped; the caller decides
// whether an empty registry is a configuration failure.
func BuildRegistry(cfg *config.Config) *Registry {
	var adapters []Adapter

	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}

		opts := Options{
			BaseURL:  pc.BaseURL,
			APIKey:   pc.APIKey,
			PageSize: pc.PageSize,
			MaxPages: cfg.Sync.MaxPages,
			Timeout:  cfg.Sync.FetchTimeout,
			Extra:    pc.Extra,
		}

		switch name {
		case "youtube":
			adapters = append(adapters, NewYouTubeAdapter(opts))
		case "airtable":
			adapters = append(adapters, NewAirtableAdapter(opts))
		case "mailchimp":
			adapters = append(adapters, NewMailchimpAdapter(opts))
		case "github":
			adapters = append(adapters, NewGitHubAdapter(opts))
		}
	}

	return NewRegistry(adapters...)
}

// DailyQuota returns the configured daily allowance for a provider,
// falling back to the package default when unset.
func DailyQuota(cfg *config.Config, provider string) int {
	if pc, ok := cfg.Providers[provider]; ok && pc.DailyQuota > 0 {
		return pc.DailyQuota
	}
	return config.DefaultProviderQuota
}
