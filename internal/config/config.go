// Package config provides configuration management for the content sync
// engine. It handles loading, validation, and access to configuration
// values from YAML files and environment variables via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aimeuniverse/contentsync/internal/logger"
)

// Config represents the application configuration.
type Config struct {
	// Server holds HTTP server configuration.
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	// Database holds PostgreSQL configuration.
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Redis holds Redis connection configuration for events and locks.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
	// Elasticsearch holds transcript index configuration.
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch" mapstructure:"elasticsearch"`
	// Logging holds logger configuration.
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
	// Sync holds orchestrator and quota configuration.
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`
	// Providers holds per-provider adapter configuration.
	Providers map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	// Jobs holds job queue and worker pool configuration.
	Jobs JobsConfig `yaml:"jobs" mapstructure:"jobs"`
	// Scheduler holds the periodic trigger configuration.
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
}

// ServerConfig represents HTTP server settings.
type ServerConfig struct {
	Address      string        `yaml:"address" mapstructure:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig represents PostgreSQL settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" json:"-" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// RedisConfig represents Redis settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" json:"-" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	// Prefix is prepended to stream and lock keys.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// ElasticsearchConfig represents the transcript search index settings.
type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses" mapstructure:"addresses"`
	Username  string   `yaml:"username" mapstructure:"username"`
	Password  string   `yaml:"password" json:"-" mapstructure:"password"`
	// TranscriptIndex is the index holding completed job results.
	TranscriptIndex string `yaml:"transcript_index" mapstructure:"transcript_index"`
}

// SyncConfig represents orchestrator and quota policy settings.
type SyncConfig struct {
	// LeaseTTL bounds how long a sync lease may be held before the next
	// run reclaims it.
	LeaseTTL time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`
	// QuotaThreshold is the fraction of the daily allowance above which
	// syncs are skipped unless forced.
	QuotaThreshold float64 `yaml:"quota_threshold" mapstructure:"quota_threshold"`
	// QuotaTimezone is the reference timezone for the daily quota reset.
	QuotaTimezone string `yaml:"quota_timezone" mapstructure:"quota_timezone"`
	// FullSyncStaleness is how old the last full sync may be before a
	// full sync is preferred over an incremental one.
	FullSyncStaleness time.Duration `yaml:"full_sync_staleness" mapstructure:"full_sync_staleness"`
	// FetchTimeout bounds a single adapter fetch call.
	FetchTimeout time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	// MaxPages caps pagination within one provider sync.
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
}

// ProviderConfig represents one provider adapter's settings.
type ProviderConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	APIKey     string `yaml:"api_key" json:"-" mapstructure:"api_key"`
	DailyQuota int    `yaml:"daily_quota" mapstructure:"daily_quota"`
	PageSize   int    `yaml:"page_size" mapstructure:"page_size"`
	// Extra holds provider-specific settings (playlist id, base id, ...).
	Extra map[string]string `yaml:"extra" mapstructure:"extra"`
}

// JobsConfig represents job queue and worker pool settings.
type JobsConfig struct {
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	QueueLimit   int           `yaml:"queue_limit" mapstructure:"queue_limit"`
	JobTimeout   time.Duration `yaml:"job_timeout" mapstructure:"job_timeout"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	DrainTimeout time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout"`
	// DefaultBackend is the backend used for auto-enqueued jobs.
	DefaultBackend string `yaml:"default_backend" mapstructure:"default_backend"`
	// Backends maps backend name to its HTTP endpoint.
	Backends map[string]BackendConfig `yaml:"backends" mapstructure:"backends"`
}

// BackendConfig represents one derived-work backend.
type BackendConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	APIKey string `yaml:"api_key" json:"-" mapstructure:"api_key"`
}

// SchedulerConfig represents the periodic sync trigger settings.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// CronSpec is a robfig/cron schedule expression.
	CronSpec string `yaml:"cron_spec" mapstructure:"cron_spec"`
}

// Load reads configuration from the given file (optional) and the
// environment. Environment variables take precedence over file values
// (e.g. CONTENTSYNC_DATABASE_HOST overrides database.host).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("CONTENTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.contentsync")
		v.AddConfigPath("/etc/contentsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine; defaults plus environment apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
