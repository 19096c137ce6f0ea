package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
)

func TestZAPIProviderDisconnect(t *testing.T) {
	t.Parallel()

	var gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("Client-Token")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"value":true}`))
	}))
	defer srv.Close()

	p := NewZAPIProvider(srv.URL+"/", "client-secret")
	err := p.Disconnect(context.Background(), &entity.Channel{ID: 1, ProviderInstanceID: "inst-1", ProviderToken: "tok-1"})
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if gotPath != "/instances/inst-1/token/tok-1/disconnect" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotToken != "client-secret" {
		t.Fatalf("unexpected client token %q", gotToken)
	}
}

func TestZAPIProviderDisconnectErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid token"))
	}))
	defer srv.Close()

	p := NewZAPIProvider(srv.URL, "")
	err := p.Disconnect(context.Background(), &entity.Channel{ID: 1, ProviderInstanceID: "inst-1", ProviderToken: "tok-1"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestZAPIProviderDisconnectMissingInstance(t *testing.T) {
	t.Parallel()

	p := NewZAPIProvider("http://unused", "")
	if err := p.Disconnect(context.Background(), &entity.Channel{ID: 1}); err == nil {
		t.Fatalf("expected error for channel without instance")
	}
}
