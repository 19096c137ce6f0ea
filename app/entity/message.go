package entity

import "time"

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusRead      MessageStatus = "read"
)

// Rank orders canonical statuses for forward-only progression. Failed ranks
// with sent so a later delivery confirmation can still move it forward.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageStatusDelivered:
		return 1
	case MessageStatusRead:
		return 2
	default:
		return 0
	}
}

// Valid reports whether s is one of the canonical statuses.
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusSent, MessageStatusDelivered, MessageStatusFailed, MessageStatusRead:
		return true
	}
	return false
}

type Message struct {
	ID                int64
	ChannelID         int64
	ExternalID        string
	Status            MessageStatus
	ExternalError     *string
	ExternalTimestamp *int64
	UpdatedAt         time.Time
}

// StatusUpdate carries the fields written by a single reconciliation step.
type StatusUpdate struct {
	Status    MessageStatus
	Error     *string
	Timestamp *int64
}
