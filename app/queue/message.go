package queue

import (
	"errors"
	"time"
)

const WebhookStreamName = "messaging:webhooks:inbound"
const WebhookConsumerGroup = "webhook-consumers"

const ProviderEventStreamName = "messaging:provider-events"

// ProviderEventReceived is published for every non-blank provider callback.
const ProviderEventReceived = "provider.event_received"

// WebhookMessage is a raw provider callback deferred for asynchronous processing.
type WebhookMessage struct {
	RequestID string
	Provider  string
	ChannelID int64
	Token     string
	Payload   []byte
}

type ProviderEvent struct {
	Name       string
	ChannelID  int64
	Provider   string
	Event      string
	Payload    []byte
	OccurredAt time.Time
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a processing error that redelivery cannot fix. The consumer
// acknowledges such messages instead of leaving them pending.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
