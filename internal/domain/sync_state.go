package domain

import "time"

// SyncState tracks per-provider synchronization bookkeeping.
// One row exists per configured provider; rows are created with defaults
// before the first run and never deleted.
type SyncState struct {
	Provider              string     `db:"provider" json:"provider"`
	LastSyncAt            *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
	LastSuccessfulSyncAt  *time.Time `db:"last_successful_sync_at" json:"last_successful_sync_at,omitempty"`
	LastFullSyncAt        *time.Time `db:"last_full_sync_at" json:"last_full_sync_at,omitempty"`
	IsSyncing             bool       `db:"is_syncing" json:"is_syncing"`
	SyncStartedAt         *time.Time `db:"sync_started_at" json:"sync_started_at,omitempty"`
	QuotaUsedToday        int        `db:"quota_used_today" json:"quota_used_today"`
	QuotaResetAt          time.Time  `db:"quota_reset_at" json:"quota_reset_at"`
	Cursor                string     `db:"cursor" json:"cursor,omitempty"`
	ConsecutiveErrorCount int        `db:"consecutive_error_count" json:"consecutive_error_count"`
	LastError             *string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// LeaseExpired reports whether a held sync lease is stale.
// A crashed run leaves is_syncing set; once the lease TTL elapses the
// next orchestrator tick may reclaim the provider.
func (s *SyncState) LeaseExpired(now time.Time, ttl time.Duration) bool {
	if !s.IsSyncing {
		return false
	}
	if s.SyncStartedAt == nil {
		return true
	}
	return now.Sub(*s.SyncStartedAt) > ttl
}
