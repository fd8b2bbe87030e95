// Package domain provides domain models used across the application.
package domain

import "time"

// Kind represents the type of content a record holds.
type Kind string

const (
	// KindDocument represents document content.
	KindDocument Kind = "document"
	// KindMedia represents audio or video content.
	KindMedia Kind = "media"
	// KindCampaign represents newsletter campaign content.
	KindCampaign Kind = "campaign"
)

// ContentRecord is the canonical unit of ingested content.
// Identity is the composite key (Provider, ProviderRecordID); the internal
// ID is assigned on first insert and never changes afterwards.
type ContentRecord struct {
	ID                string     `db:"id" json:"id"`
	Provider          string     `db:"provider" json:"provider"`
	ProviderRecordID  string     `db:"provider_record_id" json:"provider_record_id"`
	Kind              string     `db:"kind" json:"kind"`
	Title             string     `db:"title" json:"title"`
	Body              string     `db:"body" json:"body"`
	ExternalURL       string     `db:"external_url" json:"external_url"`
	Attributes        JSONBMap   `db:"attributes" json:"attributes,omitempty"`
	Fingerprint       string     `db:"fingerprint" json:"fingerprint"`
	ProviderCreatedAt *time.Time `db:"provider_created_at" json:"provider_created_at,omitempty"`
	ProviderUpdatedAt *time.Time `db:"provider_updated_at" json:"provider_updated_at,omitempty"`
	LastSyncedAt      time.Time  `db:"last_synced_at" json:"last_synced_at"`
	InsertedAt        time.Time  `db:"inserted_at" json:"inserted_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// RawRecord is a provider-native record normalized by an adapter.
// It carries everything the reconciler needs to classify and persist the
// record without knowing about the provider's wire shapes.
type RawRecord struct {
	ProviderRecordID  string         `json:"provider_record_id"`
	Kind              string         `json:"kind"`
	Title             string         `json:"title"`
	Body              string         `json:"body"`
	ExternalURL       string         `json:"external_url"`
	Attributes        map[string]any `json:"attributes,omitempty"`
	Fingerprint       string         `json:"fingerprint"`
	ProviderCreatedAt *time.Time     `json:"provider_created_at,omitempty"`
	ProviderUpdatedAt *time.Time     `json:"provider_updated_at,omitempty"`
}
