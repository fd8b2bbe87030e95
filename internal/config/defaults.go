package config

import "time"

// Default configuration values.
const (
	DefaultServerAddress      = ":8080"
	DefaultServerReadTimeout  = 30 * time.Second
	DefaultServerWriteTimeout = 30 * time.Second
	DefaultServerIdleTimeout  = 60 * time.Second

	DefaultDatabaseHost    = "localhost"
	DefaultDatabasePort    = "5432"
	DefaultDatabaseUser    = "postgres"
	DefaultDatabaseName    = "contentsync"
	DefaultDatabaseSSLMode = "disable"

	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "contentsync"

	DefaultTranscriptIndex = "transcripts"

	DefaultLeaseTTL          = 10 * time.Minute
	DefaultQuotaThreshold    = 0.8
	DefaultQuotaTimezone     = "UTC"
	DefaultFullSyncStaleness = 7 * 24 * time.Hour
	DefaultFetchTimeout      = 60 * time.Second
	DefaultMaxPages          = 20

	DefaultPoolSize       = 3
	DefaultMaxAttempts    = 3
	DefaultQueueLimit     = 500
	DefaultJobTimeout     = 10 * time.Minute
	DefaultPollInterval   = 2 * time.Second
	DefaultDrainTimeout   = 30 * time.Second
	DefaultBackendName    = "whisper"
	DefaultCronSpec       = "0 */6 * * *"
	DefaultProviderQuota  = 10000
	DefaultProviderPageSz = 50
)

// defaultBaseURLs maps the built-in providers to their public API roots.
var defaultBaseURLs = map[string]string{
	"youtube":   "https://www.googleapis.com/youtube/v3",
	"airtable":  "https://api.airtable.com/v0",
	"mailchimp": "https://us1.api.mailchimp.com",
	"github":    "https://api.github.com",
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = DefaultServerIdleTimeout
	}

	if c.Database.Host == "" {
		c.Database.Host = DefaultDatabaseHost
	}
	if c.Database.Port == "" {
		c.Database.Port = DefaultDatabasePort
	}
	if c.Database.User == "" {
		c.Database.User = DefaultDatabaseUser
	}
	if c.Database.DBName == "" {
		c.Database.DBName = DefaultDatabaseName
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDatabaseSSLMode
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = DefaultRedisPrefix
	}

	if len(c.Elasticsearch.Addresses) == 0 {
		c.Elasticsearch.Addresses = []string{"http://localhost:9200"}
	}
	if c.Elasticsearch.TranscriptIndex == "" {
		c.Elasticsearch.TranscriptIndex = DefaultTranscriptIndex
	}

	if c.Sync.LeaseTTL <= 0 {
		c.Sync.LeaseTTL = DefaultLeaseTTL
	}
	if c.Sync.QuotaThreshold <= 0 || c.Sync.QuotaThreshold > 1 {
		c.Sync.QuotaThreshold = DefaultQuotaThreshold
	}
	if c.Sync.QuotaTimezone == "" {
		c.Sync.QuotaTimezone = DefaultQuotaTimezone
	}
	if c.Sync.FullSyncStaleness <= 0 {
		c.Sync.FullSyncStaleness = DefaultFullSyncStaleness
	}
	if c.Sync.FetchTimeout <= 0 {
		c.Sync.FetchTimeout = DefaultFetchTimeout
	}
	if c.Sync.MaxPages <= 0 {
		c.Sync.MaxPages = DefaultMaxPages
	}

	for name, p := range c.Providers {
		if p.BaseURL == "" {
			p.BaseURL = defaultBaseURLs[name]
		}
		if p.DailyQuota <= 0 {
			p.DailyQuota = DefaultProviderQuota
		}
		if p.PageSize <= 0 {
			p.PageSize = DefaultProviderPageSz
		}
		c.Providers[name] = p
	}

	if c.Jobs.PoolSize <= 0 {
		c.Jobs.PoolSize = DefaultPoolSize
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = DefaultMaxAttempts
	}
	if c.Jobs.QueueLimit <= 0 {
		c.Jobs.QueueLimit = DefaultQueueLimit
	}
	if c.Jobs.JobTimeout <= 0 {
		c.Jobs.JobTimeout = DefaultJobTimeout
	}
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = DefaultPollInterval
	}
	if c.Jobs.DrainTimeout <= 0 {
		c.Jobs.DrainTimeout = DefaultDrainTimeout
	}
	if c.Jobs.DefaultBackend == "" {
		c.Jobs.DefaultBackend = DefaultBackendName
	}

	if c.Scheduler.CronSpec == "" {
		c.Scheduler.CronSpec = DefaultCronSpec
	}
}
