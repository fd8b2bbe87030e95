package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the configuration for inconsistencies that would make
// the engine misbehave at runtime. Defaults must be applied first.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Sync.QuotaTimezone); err != nil {
		return fmt.Errorf("invalid quota timezone %q: %w", c.Sync.QuotaTimezone, err)
	}

	for name, p := range c.Providers {
		if !p.Enabled {
			continue
		}
		if p.BaseURL == "" {
			return fmt.Errorf("provider %q is enabled but has no base_url", name)
		}
	}

	for name, b := range c.Jobs.Backends {
		if b.URL == "" {
			return fmt.Errorf("job backend %q has no url", name)
		}
	}

	if len(c.Jobs.Backends) > 0 {
		if _, ok := c.Jobs.Backends[c.Jobs.DefaultBackend]; !ok {
			return fmt.Errorf("default job backend %q is not configured", c.Jobs.DefaultBackend)
		}
	}

	return nil
}

// EnabledProviders returns the names of all enabled providers.
func (c *Config) EnabledProviders() []string {
	names := make([]string, 0, len(c.Providers))
	for name, p := range c.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// RequireProviders fails when no provider is enabled. The orchestrator
// treats this as a configuration-level failure that aborts the run.
func (c *Config) RequireProviders() error {
	if len(c.EnabledProviders()) == 0 {
		return errors.New("no providers configured")
	}
	return nil
}
