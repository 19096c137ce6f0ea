package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
)

type ZAPIProvider struct {
	baseURL     string
	clientToken string
	http        *http.Client
}

// NewZAPIProvider builds a client for the Z-API instance endpoints.
func NewZAPIProvider(baseURL string, clientToken string) *ZAPIProvider {
	return &ZAPIProvider{
		baseURL:     strings.TrimRight(baseURL, "/"),
		clientToken: clientToken,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

// Disconnect logs the channel's instance out of WhatsApp.
func (p *ZAPIProvider) Disconnect(ctx context.Context, channel *entity.Channel) error {
	if channel == nil {
		return fmt.Errorf("channel is required")
	}
	if channel.ProviderInstanceID == "" || channel.ProviderToken == "" {
		return fmt.Errorf("channel %d has no z-api instance configured", channel.ID)
	}

	endpoint := fmt.Sprintf("%s/instances/%s/token/%s/disconnect",
		p.baseURL, url.PathEscape(channel.ProviderInstanceID), url.PathEscape(channel.ProviderToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if p.clientToken != "" {
		req.Header.Set("Client-Token", p.clientToken)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("z-api disconnect request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("z-api disconnect returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
