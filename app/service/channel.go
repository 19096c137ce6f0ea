package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/phone"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/provider"
)

type ChannelStore interface {
	GetByID(ctx context.Context, id int64) (*entity.Channel, error)
	UpdateConnection(ctx context.Context, id int64, conn entity.Connection) error
}

type ChannelService struct {
	channels     ChannelStore
	disconnector provider.Disconnector
	matcher      *phone.Matcher
	logger       logrus.FieldLogger
}

// NewChannelService builds the channel connection service.
func NewChannelService(channels ChannelStore, disconnector provider.Disconnector, matcher *phone.Matcher, logger logrus.FieldLogger) *ChannelService {
	return &ChannelService{channels: channels, disconnector: disconnector, matcher: matcher, logger: logger}
}

// Get loads a channel by id.
func (s *ChannelService) Get(ctx context.Context, id int64) (*entity.Channel, error) {
	return s.channels.GetByID(ctx, id)
}

// HandleConnected opens the channel when the provider session belongs to the
// channel's number. A session on another number is closed and disconnected.
func (s *ChannelService) HandleConnected(ctx context.Context, channel *entity.Channel, phoneNumber string) error {
	if s.matcher.Match(channel.PhoneNumber, phoneNumber) {
		return s.UpdateConnection(ctx, channel, entity.Connection{State: entity.ConnectionOpen})
	}

	reason := WrongPhoneNumber
	if err := s.UpdateConnection(ctx, channel, entity.Connection{State: entity.ConnectionClose, Error: &reason}); err != nil {
		return err
	}

	log := s.logger.WithFields(logrus.Fields{"channel_id": channel.ID, "phone": phoneNumber})
	log.Warn("Provider connected with a different phone number, disconnecting")
	if err := s.disconnector.Disconnect(ctx, channel); err != nil {
		log.WithError(err).Error("Failed to disconnect provider session")
	}
	return nil
}

// HandleDisconnected marks the channel connection as closed.
func (s *ChannelService) HandleDisconnected(ctx context.Context, channel *entity.Channel) error {
	return s.UpdateConnection(ctx, channel, entity.Connection{State: entity.ConnectionClose})
}

// UpdateConnection persists a connection snapshot and mirrors it on channel.
func (s *ChannelService) UpdateConnection(ctx context.Context, channel *entity.Channel, conn entity.Connection) error {
	if err := s.channels.UpdateConnection(ctx, channel.ID, conn); err != nil {
		return fmt.Errorf("update channel connection: %w", err)
	}
	channel.Connection = conn.State
	channel.ConnectionError = conn.Error
	channel.ConnectionQR = conn.QR

	s.logger.WithFields(logrus.Fields{
		"channel_id": channel.ID,
		"connection": conn.State,
	}).Info("Channel connection updated")
	return nil
}
