package entity

import "time"

const (
	ProviderZAPI    = "zapi"
	ProviderBaileys = "baileys"
)

type ConnectionState string

const (
	ConnectionOpen       ConnectionState = "open"
	ConnectionClose      ConnectionState = "close"
	ConnectionConnecting ConnectionState = "connecting"
)

type Channel struct {
	ID                 int64
	Provider           string
	PhoneNumber        string
	WebhookVerifyToken string
	ProviderInstanceID string
	ProviderToken      string
	Connection         ConnectionState
	ConnectionError    *string
	ConnectionQR       *string
	UpdatedAt          time.Time
}

// Connection is the provider connection snapshot stored on a channel.
type Connection struct {
	State ConnectionState
	Error *string
	QR    *string
}
