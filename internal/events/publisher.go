package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher writes post-commit ledger events to the Redis Stream. Publishing
// is notification-only; by the time an event goes out the mutation it
// describes is already durable.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

func (p *Publisher) PublishTransactionApplied(ctx context.Context, data TransactionAppliedEvent) error {
	return p.publish(ctx, TransactionApplied, data)
}

func (p *Publisher) PublishBalanceUpdated(ctx context.Context, data BalanceUpdatedEvent) error {
	return p.publish(ctx, BalanceUpdated, data)
}

func (p *Publisher) publish(ctx context.Context, eventType string, data any) error {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: LedgerEventsStream,
		Values: map[string]any{
			"event": eventJSON,
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		zap.String("stream", LedgerEventsStream),
		zap.String("type", eventType),
	)
	return nil
}
