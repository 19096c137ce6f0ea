package service

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestRequestIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithRequestID(context.Background(), "req-1")
	id, ok := RequestIDFromContext(ctx)
	if !ok || id != "req-1" {
		t.Fatalf("expected req-1, got %q (%v)", id, ok)
	}

	if _, ok := RequestIDFromContext(WithRequestID(context.Background(), "")); ok {
		t.Fatalf("expected empty request id to be ignored")
	}
}

func TestContextLoggerAddsRequestID(t *testing.T) {
	t.Parallel()
	logger, hook := test.NewNullLogger()

	contextLogger(WithRequestID(context.Background(), "req-2"), logger).Info("hello")
	if got := hook.LastEntry().Data["request_id"]; got != "req-2" {
		t.Fatalf("expected request_id field, got %v", got)
	}

	contextLogger(context.Background(), logger).Info("plain")
	if _, ok := hook.LastEntry().Data["request_id"]; ok {
		t.Fatalf("expected no request_id field")
	}
}
