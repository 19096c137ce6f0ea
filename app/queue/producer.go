package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type WebhookProducer struct {
	client redis.UniversalClient
}

// NewWebhookProducer constructs a Redis stream producer for inbound webhooks.
func NewWebhookProducer(client redis.UniversalClient) *WebhookProducer {
	return &WebhookProducer{client: client}
}

// Publish pushes a webhook payload onto the inbound stream.
func (p *WebhookProducer) Publish(ctx context.Context, msg WebhookMessage) error {
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: WebhookStreamName,
		Values: map[string]interface{}{
			"request_id": msg.RequestID,
			"provider":   msg.Provider,
			"channel_id": strconv.FormatInt(msg.ChannelID, 10),
			"token":      msg.Token,
			"payload":    string(msg.Payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd to %s: %w", WebhookStreamName, err)
	}
	return nil
}

type EventPublisher struct {
	client redis.UniversalClient
	maxLen int64
}

// NewEventPublisher constructs a publisher for provider events. The stream is
// trimmed approximately to maxLen entries; zero disables trimming.
func NewEventPublisher(client redis.UniversalClient, maxLen int64) *EventPublisher {
	return &EventPublisher{client: client, maxLen: maxLen}
}

// Publish appends a provider event and returns its event id.
func (p *EventPublisher) Publish(ctx context.Context, event ProviderEvent) (string, error) {
	eventID := uuid.NewString()
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	args := &redis.XAddArgs{
		Stream: ProviderEventStreamName,
		Values: map[string]interface{}{
			"event_id":    eventID,
			"name":        event.Name,
			"channel_id":  strconv.FormatInt(event.ChannelID, 10),
			"provider":    event.Provider,
			"event":       event.Event,
			"payload":     string(event.Payload),
			"occurred_at": occurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return "", fmt.Errorf("xadd to %s: %w", ProviderEventStreamName, err)
	}
	return eventID, nil
}
