package service

import "errors"

var (
	ErrInvalidWebhookVerifyToken = errors.New("invalid webhook verify token")
	ErrInvalidClientToken        = errors.New("invalid client token")
	ErrInvalidPayload            = errors.New("invalid webhook payload")
	ErrProviderMismatch          = errors.New("channel does not belong to this provider")
	ErrUnsupportedProvider       = errors.New("unsupported provider")
)

// WrongPhoneNumber is stored as the connection error when a provider session
// was opened with a number other than the channel's.
const WrongPhoneNumber = "wrong phone number"
