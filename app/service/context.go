package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

type requestIDKey struct{}

// WithRequestID tags ctx with the inbound webhook's request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey{}).(string)
	return requestID, ok && requestID != ""
}

// contextLogger adds the request id to logger when ctx carries one.
func contextLogger(ctx context.Context, logger logrus.FieldLogger) logrus.FieldLogger {
	if requestID, ok := RequestIDFromContext(ctx); ok {
		return logger.WithField("request_id", requestID)
	}
	return logger
}
