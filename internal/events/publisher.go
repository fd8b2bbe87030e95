package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// eventField is the field name for the serialized event payload.
	eventField = "event"

	// defaultMaxStreamLen bounds the stream to prevent unbounded growth.
	defaultMaxStreamLen = 10000
)

// Publisher writes content upsert events to the Redis stream.
type Publisher struct {
	client       *redis.Client
	stream       string
	maxStreamLen int64
}

// NewPublisher creates a publisher over the given Redis client.
// Returns nil when client is nil, which downstream callers treat as
// events disabled.
func NewPublisher(client *redis.Client, prefix string) *Publisher {
	if client == nil {
		return nil
	}

	return &Publisher{
		client:       client,
		stream:       prefix + ":" + StreamName,
		maxStreamLen: defaultMaxStreamLen,
	}
}

// PublishUpsert emits one content upsert event.
func (p *Publisher) PublishUpsert(
	ctx context.Context,
	recordID, provider, kind, fingerprint string,
	change ChangeType,
) error {
	if p == nil {
		return nil
	}

	event := ContentUpserted{
		EventID:         uuid.New(),
		ContentRecordID: recordID,
		Provider:        provider,
		Kind:            kind,
		Change:          change,
		Fingerprint:     fingerprint,
		OccurredAt:      time.Now().UTC(),
	}

	data, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		return fmt.Errorf("failed to serialize event: %w", marshalErr)
	}

	addErr := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxStreamLen,
		Approx: true,
		Values: map[string]any{eventField: string(data)},
	}).Err()

	if addErr != nil {
		return fmt.Errorf("failed to publish upsert event: %w", addErr)
	}

	return nil
}
