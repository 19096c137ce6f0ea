package provider

import (
	"context"

	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
)

// NoopProvider is a stubbed provider that pretends to disconnect channels.
type NoopProvider struct{}

// NewNoopProvider constructs a no-op provider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Disconnect returns nil without calling any provider.
func (p *NoopProvider) Disconnect(_ context.Context, _ *entity.Channel) error {
	return nil
}
