// Package events provides the content upsert event boundary between the
// reconciler and its downstream consumers, carried over Redis Streams.
package events

import (
	"time"

	"github.com/google/uuid"
)

// StreamName is the Redis stream for content upsert events. The
// configured key prefix is prepended at runtime.
const StreamName = "content-events"

// ConsumerGroup is the consumer group for engine workers.
const ConsumerGroup = "contentsync-workers"

// ChangeType classifies how a content record changed.
type ChangeType string

const (
	// ChangeCreated indicates a record was seen for the first time.
	ChangeCreated ChangeType = "created"
	// ChangeUpdated indicates an existing record's content changed.
	ChangeUpdated ChangeType = "updated"
)

// ContentUpserted is published for every created or updated record so
// downstream components (job queue, search indexer, graph builder) can
// react without the reconciler knowing about them.
type ContentUpserted struct {
	EventID         uuid.UUID  `json:"event_id"`
	ContentRecordID string     `json:"content_record_id"`
	Provider        string     `json:"provider"`
	Kind            string     `json:"kind"`
	Change          ChangeType `json:"change"`
	Fingerprint     string     `json:"fingerprint"`
	OccurredAt      time.Time  `json:"occurred_at"`
}
