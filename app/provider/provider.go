package provider

import (
	"context"

	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
)

// Disconnector tears down the provider session behind a channel.
type Disconnector interface {
	Disconnect(ctx context.Context, channel *entity.Channel) error
}
