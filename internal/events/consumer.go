package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aimeuniverse/contentsync/internal/logger"
)

const (
	blockDuration    = 5 * time.Second
	claimIdleTimeout = 30 * time.Second
	batchSize        = 10
)

// Handler processes content upsert events.
type Handler interface {
	HandleContentUpserted(ctx context.Context, event ContentUpserted) error
}

// Consumer reads content upsert events from the Redis stream.
type Consumer struct {
	client     *redis.Client
	stream     string
	consumerID string
	handler    Handler
	log        logger.Logger
	shutdownCh chan struct{}
}

// NewConsumer creates a new event consumer.
// Returns nil if client is nil.
func NewConsumer(client *redis.Client, prefix, consumerID string, handler Handler, log logger.Logger) *Consumer {
	if client == nil {
		return nil
	}
	if consumerID == "" {
		consumerID = generateConsumerID()
	}
	return &Consumer{
		client:     client,
		stream:     prefix + ":" + StreamName,
		consumerID: consumerID,
		handler:    handler,
		log:        log,
		shutdownCh: make(chan struct{}),
	}
}

// generateConsumerID creates a unique consumer identifier.
func generateConsumerID() string {
	const uuidPrefixLength = 8
	return fmt.Sprintf("contentsync-%s", uuid.New().String()[:uuidPrefixLength])
}

// Start begins consuming events from the stream.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	c.log.Info("starting event consumer",
		logger.String("consumer_id", c.consumerID),
		logger.String("stream", c.stream),
	)

	go c.consumeLoop(ctx)
	go c.claimAbandonedLoop(ctx)

	return nil
}

// Stop gracefully shuts down the consumer.
func (c *Consumer) Stop() {
	close(c.shutdownCh)
}

// ensureConsumerGroup creates the consumer group if it does not exist.
func (c *Consumer) ensureConsumerGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdownCh:
			return
		default:
			c.readAndProcess(ctx)
		}
	}
}

func (c *Consumer) readAndProcess(ctx context.Context) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: c.consumerID,
		Streams:  []string{c.stream, ">"},
		Count:    batchSize,
		Block:    blockDuration,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("failed to read from stream", logger.Err(err))
		time.Sleep(time.Second)
		return
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.processMessage(ctx, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) {
	eventData, ok := msg.Values[eventField].(string)
	if !ok {
		c.log.Error("invalid message format", logger.String("stream_id", msg.ID))
		c.ackMessage(ctx, msg.ID)
		return
	}

	var event ContentUpserted
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		c.log.Error("failed to unmarshal event",
			logger.String("stream_id", msg.ID),
			logger.Err(err),
		)
		c.ackMessage(ctx, msg.ID)
		return
	}

	if err := c.handler.HandleContentUpserted(ctx, event); err != nil {
		c.log.Error("failed to handle event",
			logger.String("content_record_id", event.ContentRecordID),
			logger.Err(err),
		)
		return // No ACK; the message will be redelivered.
	}

	c.ackMessage(ctx, msg.ID)
}

func (c *Consumer) ackMessage(ctx context.Context, streamID string) {
	if err := c.client.XAck(ctx, c.stream, ConsumerGroup, streamID).Err(); err != nil {
		c.log.Error("failed to ack message",
			logger.String("stream_id", streamID),
			logger.Err(err),
		)
	}
}

func (c *Consumer) claimAbandonedLoop(ctx context.Context) {
	ticker := time.NewTicker(claimIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdownCh:
			return
		case <-ticker.C:
			c.claimAbandonedMessages(ctx)
		}
	}
}

// claimAbandonedMessages takes over messages another consumer read but
// never acknowledged, so a crashed worker's events are not lost.
func (c *Consumer) claimAbandonedMessages(ctx context.Context) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    ConsumerGroup,
		Consumer: c.consumerID,
		MinIdle:  claimIdleTimeout,
		Start:    "0",
		Count:    batchSize,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("failed to claim abandoned messages", logger.Err(err))
		return
	}

	for _, msg := range messages {
		c.processMessage(ctx, msg)
	}
}
