package queue

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	readBatch      = 10
	readBlock      = 5 * time.Second
	processTimeout = 30 * time.Second
	// reclaimIdle is how long a delivery may stay unacknowledged before any
	// consumer of the group takes it over and retries it.
	reclaimIdle = time.Minute
	// maxDeliveries bounds how often a failing webhook is retried before it
	// is acknowledged and dropped.
	maxDeliveries = 5
)

// Processor handles one queued webhook.
type Processor interface {
	Process(ctx context.Context, msg WebhookMessage) error
}

type WebhookConsumer struct {
	client        redis.UniversalClient
	processor     Processor
	consumerName  string
	logger        logrus.FieldLogger
	reclaimIdle   time.Duration
	maxDeliveries int64
}

// NewWebhookConsumer constructs a consumer group member for the inbound
// webhook stream.
func NewWebhookConsumer(client redis.UniversalClient, processor Processor, consumerName string, logger logrus.FieldLogger) *WebhookConsumer {
	return &WebhookConsumer{
		client:        client,
		processor:     processor,
		consumerName:  consumerName,
		logger:        logger.WithField("consumer", consumerName),
		reclaimIdle:   reclaimIdle,
		maxDeliveries: maxDeliveries,
	}
}

// Run processes webhooks until ctx is cancelled. It first replays the
// deliveries this consumer left pending, then reads new entries and
// periodically retries entries that stayed pending anywhere in the group.
func (c *WebhookConsumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	c.logger.Infof("Consumer started on stream %s", WebhookStreamName)

	c.replayPending(ctx)

	lastReclaim := time.Now()
	for ctx.Err() == nil {
		if time.Since(lastReclaim) >= c.reclaimIdle {
			c.reclaim(ctx)
			lastReclaim = time.Now()
		}

		if _, err := c.read(ctx, ">"); err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.WithError(err).Error("XReadGroup failed")
			sleep(ctx, time.Second)
		}
	}

	c.logger.Info("Consumer shutting down")
	return nil
}

// replayPending drains the deliveries this consumer left pending, one batch
// after another, until none remain past the cursor.
func (c *WebhookConsumer) replayPending(ctx context.Context) {
	cursor := "0"
	for ctx.Err() == nil {
		last, err := c.read(ctx, cursor)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.WithError(err).Warn("Replaying own pending webhooks failed")
			}
			return
		}
		if last == "" {
			return
		}
		cursor = last
	}
}

// read fetches one batch after id ("0" for own pending, ">" for new) and
// processes it. It returns the last entry id seen; a block timeout is not an
// error.
func (c *WebhookConsumer) read(ctx context.Context, id string) (string, error) {
	block := readBlock
	if id != ">" {
		block = -1
	}
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    WebhookConsumerGroup,
		Consumer: c.consumerName,
		Streams:  []string{WebhookStreamName, id},
		Count:    readBatch,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var last string
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.processMessage(ctx, msg)
			last = msg.ID
		}
	}
	return last, nil
}

// reclaim takes over deliveries idle for longer than reclaimIdle and retries
// them here.
func (c *WebhookConsumer) reclaim(ctx context.Context) {
	start := "0-0"
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   WebhookStreamName,
			Group:    WebhookConsumerGroup,
			Consumer: c.consumerName,
			MinIdle:  c.reclaimIdle,
			Start:    start,
			Count:    readBatch,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.WithError(err).Warn("XAutoClaim failed")
			}
			return
		}

		for _, msg := range msgs {
			c.processMessage(ctx, msg)
		}
		if next == "0-0" || len(msgs) == 0 {
			return
		}
		start = next
	}
}

// processMessage acks on success, on a permanent failure, or once the entry
// used up its deliveries. Anything else stays pending for reclaim.
func (c *WebhookConsumer) processMessage(ctx context.Context, msg redis.XMessage) {
	webhook := decodeWebhookMessage(msg)
	log := c.logger.WithFields(logrus.Fields{
		"stream_id":  msg.ID,
		"request_id": webhook.RequestID,
		"provider":   webhook.Provider,
		"channel_id": webhook.ChannelID,
	})

	processCtx, cancel := context.WithTimeout(ctx, processTimeout)
	err := c.processor.Process(processCtx, webhook)
	cancel()

	switch {
	case err == nil:
		log.Debug("Queued webhook processed")
	case IsPermanent(err):
		log.WithError(err).Warn("Dropping webhook that cannot be processed")
	default:
		deliveries := c.deliveries(ctx, msg.ID)
		if deliveries < c.maxDeliveries {
			log.WithError(err).WithField("deliveries", deliveries).Warn("Webhook processing failed, message stays pending")
			return
		}
		log.WithError(err).WithField("deliveries", deliveries).Warn("Dropping webhook after repeated failures")
	}

	if err := c.client.XAck(ctx, WebhookStreamName, WebhookConsumerGroup, msg.ID).Err(); err != nil {
		log.WithError(err).Error("XAck failed")
	}
}

// deliveries reports how often the group delivered id. Zero when unknown.
func (c *WebhookConsumer) deliveries(ctx context.Context, id string) int64 {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: WebhookStreamName,
		Group:  WebhookConsumerGroup,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			c.logger.WithError(err).WithField("stream_id", id).Warn("XPending failed")
		}
		return 0
	}
	if len(pending) == 0 {
		return 0
	}
	return pending[0].RetryCount
}

func (c *WebhookConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, WebhookStreamName, WebhookConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func decodeWebhookMessage(msg redis.XMessage) WebhookMessage {
	field := func(name string) string {
		value, _ := msg.Values[name].(string)
		return value
	}
	channelID, _ := strconv.ParseInt(field("channel_id"), 10, 64)
	return WebhookMessage{
		RequestID: field("request_id"),
		Provider:  field("provider"),
		ChannelID: channelID,
		Token:     field("token"),
		Payload:   []byte(field("payload")),
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
