package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/dto"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/queue"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/reconciler"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/repository"
)

const (
	zapiMessageStatus = "MessageStatusCallback"
	zapiDelivery      = "DeliveryCallback"
	zapiConnected     = "ConnectedCallback"
	zapiDisconnected  = "DisconnectedCallback"

	// zapiDeliveredCode is the status implied by a DeliveryCallback.
	zapiDeliveredCode = "DELIVERED"

	baileysConnectionUpdate = "connection_update"
	baileysMessagesUpdate   = "messages_update"
)

type StatusReconciler interface {
	Reconcile(ctx context.Context, event reconciler.StatusEvent) (reconciler.Result, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event queue.ProviderEvent) (string, error)
}

type zapiHandler func(ctx context.Context, channel *entity.Channel, payload dto.ZAPIWebhook) error
type baileysHandler func(ctx context.Context, channel *entity.Channel, payload dto.BaileysWebhook) error

type WebhookService struct {
	channels   *ChannelService
	reconciler StatusReconciler
	events     EventPublisher
	logger     logrus.FieldLogger
	now        func() time.Time

	zapiHandlers    map[string]zapiHandler
	baileysHandlers map[string]baileysHandler
}

// NewWebhookService wires provider callbacks to status reconciliation and
// channel connection tracking. events may be nil.
func NewWebhookService(channels *ChannelService, rec StatusReconciler, events EventPublisher, logger logrus.FieldLogger) *WebhookService {
	s := &WebhookService{
		channels:   channels,
		reconciler: rec,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
	s.zapiHandlers = map[string]zapiHandler{
		zapiMessageStatus: s.zapiMessageStatus,
		zapiDelivery:      s.zapiDelivery,
		zapiConnected:     s.zapiConnected,
		zapiDisconnected:  s.zapiDisconnected,
	}
	s.baileysHandlers = map[string]baileysHandler{
		baileysConnectionUpdate: s.baileysConnectionUpdate,
		baileysMessagesUpdate:   s.baileysMessagesUpdate,
	}
	return s
}

// PrecheckZAPI loads the channel and checks the token and payload shape
// without dispatching. Used before deferring a webhook to the queue.
func (s *WebhookService) PrecheckZAPI(ctx context.Context, channelID int64, clientToken string, body []byte) error {
	_, _, err := s.prepareZAPI(ctx, channelID, clientToken, body)
	return err
}

// PrecheckBaileys is PrecheckZAPI for Baileys callbacks.
func (s *WebhookService) PrecheckBaileys(ctx context.Context, channelID int64, body []byte) error {
	_, _, err := s.prepareBaileys(ctx, channelID, body)
	return err
}

// HandleZAPI processes one Z-API callback for a channel.
func (s *WebhookService) HandleZAPI(ctx context.Context, channelID int64, clientToken string, body []byte) error {
	channel, payload, err := s.prepareZAPI(ctx, channelID, clientToken, body)
	if err != nil {
		return err
	}
	if payload.Type == "" {
		return nil
	}

	s.publish(ctx, channel, payload.Type, body)

	handler, ok := s.zapiHandlers[payload.Type]
	if !ok {
		s.logger.Warnf("Z-API unsupported event: %s", payload.Type)
		return nil
	}
	return handler(ctx, channel, payload)
}

// HandleBaileys processes one Baileys callback for a channel.
func (s *WebhookService) HandleBaileys(ctx context.Context, channelID int64, body []byte) error {
	channel, payload, err := s.prepareBaileys(ctx, channelID, body)
	if err != nil {
		return err
	}
	if payload.Event == "" || !payload.HasData() {
		return nil
	}

	s.publish(ctx, channel, payload.Event, payload.Data)

	handler, ok := s.baileysHandlers[payload.NormalizedEvent()]
	if !ok {
		s.logger.Warnf("Baileys unsupported event: %s", payload.Event)
		return nil
	}
	return handler(ctx, channel, payload)
}

// Process replays a queued webhook. Errors redelivery cannot fix are marked
// permanent so the consumer acknowledges them.
func (s *WebhookService) Process(ctx context.Context, msg queue.WebhookMessage) error {
	ctx = WithRequestID(ctx, msg.RequestID)

	var err error
	switch msg.Provider {
	case entity.ProviderZAPI:
		err = s.HandleZAPI(ctx, msg.ChannelID, msg.Token, msg.Payload)
	case entity.ProviderBaileys:
		err = s.HandleBaileys(ctx, msg.ChannelID, msg.Payload)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedProvider, msg.Provider)
	}

	if err != nil && isPermanent(err) {
		return queue.Permanent(err)
	}
	return err
}

func (s *WebhookService) prepareZAPI(ctx context.Context, channelID int64, clientToken string, body []byte) (*entity.Channel, dto.ZAPIWebhook, error) {
	channel, err := s.channel(ctx, channelID, entity.ProviderZAPI)
	if err != nil {
		return nil, dto.ZAPIWebhook{}, err
	}
	if channel.WebhookVerifyToken != "" && !tokensEqual(channel.WebhookVerifyToken, clientToken) {
		return nil, dto.ZAPIWebhook{}, ErrInvalidClientToken
	}

	payload, err := dto.ParseZAPIWebhook(body)
	if err != nil {
		return nil, dto.ZAPIWebhook{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return channel, payload, nil
}

func (s *WebhookService) prepareBaileys(ctx context.Context, channelID int64, body []byte) (*entity.Channel, dto.BaileysWebhook, error) {
	channel, err := s.channel(ctx, channelID, entity.ProviderBaileys)
	if err != nil {
		return nil, dto.BaileysWebhook{}, err
	}

	payload, err := dto.ParseBaileysWebhook(body)
	if err != nil {
		return nil, dto.BaileysWebhook{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !tokensEqual(channel.WebhookVerifyToken, payload.WebhookVerifyToken) {
		return nil, dto.BaileysWebhook{}, ErrInvalidWebhookVerifyToken
	}
	return channel, payload, nil
}

func (s *WebhookService) channel(ctx context.Context, channelID int64, provider string) (*entity.Channel, error) {
	channel, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.Provider != provider {
		return nil, ErrProviderMismatch
	}
	return channel, nil
}

func (s *WebhookService) zapiMessageStatus(ctx context.Context, channel *entity.Channel, payload dto.ZAPIWebhook) error {
	return s.reconcile(ctx, reconciler.StatusEvent{
		ChannelID:   channel.ID,
		Provider:    reconciler.ProviderZAPI,
		ExternalIDs: payload.IDs,
		Code:        payload.Status,
		Error:       payload.Error,
		Timestamp:   payload.Momment,
	})
}

func (s *WebhookService) zapiDelivery(ctx context.Context, channel *entity.Channel, payload dto.ZAPIWebhook) error {
	return s.reconcile(ctx, reconciler.StatusEvent{
		ChannelID:   channel.ID,
		Provider:    reconciler.ProviderZAPI,
		ExternalIDs: []string{payload.MessageID},
		Code:        zapiDeliveredCode,
		Error:       payload.Error,
		Timestamp:   payload.Momment,
	})
}

func (s *WebhookService) zapiConnected(ctx context.Context, channel *entity.Channel, payload dto.ZAPIWebhook) error {
	return s.channels.HandleConnected(ctx, channel, payload.Phone)
}

func (s *WebhookService) zapiDisconnected(ctx context.Context, channel *entity.Channel, _ dto.ZAPIWebhook) error {
	return s.channels.HandleDisconnected(ctx, channel)
}

func (s *WebhookService) baileysConnectionUpdate(ctx context.Context, channel *entity.Channel, payload dto.BaileysWebhook) error {
	update, err := payload.ConnectionUpdate()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	conn := entity.Connection{State: entity.ConnectionState(update.Connection)}
	switch conn.State {
	case entity.ConnectionOpen, entity.ConnectionClose:
	case entity.ConnectionConnecting:
		if update.QR != "" {
			conn.QR = &update.QR
		}
	case "":
		// QR refreshes arrive without a connection field.
		if update.QR == "" {
			return nil
		}
		conn.State = entity.ConnectionConnecting
		conn.QR = &update.QR
	default:
		s.logger.Warnf("Baileys unsupported connection state: %s", update.Connection)
		return nil
	}
	return s.channels.UpdateConnection(ctx, channel, conn)
}

func (s *WebhookService) baileysMessagesUpdate(ctx context.Context, channel *entity.Channel, payload dto.BaileysWebhook) error {
	updates, err := payload.MessageUpdates()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var codes []string
	idsByCode := make(map[string][]string)
	for _, u := range updates {
		code := string(u.Update.Status)
		if u.Key.ID == "" || code == "" {
			continue
		}
		if _, ok := idsByCode[code]; !ok {
			codes = append(codes, code)
		}
		idsByCode[code] = append(idsByCode[code], u.Key.ID)
	}

	for _, code := range codes {
		err := s.reconcile(ctx, reconciler.StatusEvent{
			ChannelID:   channel.ID,
			Provider:    reconciler.ProviderBaileys,
			ExternalIDs: idsByCode[code],
			Code:        code,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *WebhookService) reconcile(ctx context.Context, event reconciler.StatusEvent) error {
	result, err := s.reconciler.Reconcile(ctx, event)
	if err != nil {
		return err
	}

	contextLogger(ctx, s.logger).WithFields(logrus.Fields{
		"channel_id": event.ChannelID,
		"provider":   event.Provider,
		"code":       event.Code,
		"updated":    len(result.Updated),
		"missing":    len(result.Missing),
	}).Debug("Status webhook handled")
	return nil
}

func (s *WebhookService) publish(ctx context.Context, channel *entity.Channel, event string, payload []byte) {
	if s.events == nil {
		return
	}
	eventID, err := s.events.Publish(ctx, queue.ProviderEvent{
		Name:       queue.ProviderEventReceived,
		ChannelID:  channel.ID,
		Provider:   channel.Provider,
		Event:      event,
		Payload:    payload,
		OccurredAt: s.now(),
	})
	log := contextLogger(ctx, s.logger).WithFields(logrus.Fields{"channel_id": channel.ID, "event": event})
	if err != nil {
		log.WithError(err).Warn("Failed to publish provider event")
		return
	}
	log.WithField("event_id", eventID).Debug("Provider event published")
}

func tokensEqual(expected, actual string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}

func isPermanent(err error) bool {
	return errors.Is(err, reconciler.ErrInvalidEvent) ||
		errors.Is(err, repository.ErrChannelNotFound) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrInvalidClientToken) ||
		errors.Is(err, ErrInvalidWebhookVerifyToken) ||
		errors.Is(err, ErrProviderMismatch) ||
		errors.Is(err, ErrUnsupportedProvider)
}
