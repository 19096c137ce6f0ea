package dto

import (
	"encoding/json"
	"strings"
)

// ZAPIWebhook is the union of the Z-API callback payloads the service reads.
type ZAPIWebhook struct {
	Type      string   `json:"type"`
	IDs       []string `json:"ids"`
	MessageID string   `json:"messageId"`
	Status    string   `json:"status"`
	Error     string   `json:"error"`
	Momment   *int64   `json:"momment"`
	Phone     string   `json:"phone"`
}

// ParseZAPIWebhook decodes and normalizes a Z-API callback body.
func ParseZAPIWebhook(body []byte) (ZAPIWebhook, error) {
	var payload ZAPIWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return ZAPIWebhook{}, err
	}
	payload.normalize()
	return payload, nil
}

// normalize trims whitespace for all fields.
func (p *ZAPIWebhook) normalize() {
	p.Type = strings.TrimSpace(p.Type)
	p.MessageID = strings.TrimSpace(p.MessageID)
	p.Status = strings.TrimSpace(p.Status)
	p.Error = strings.TrimSpace(p.Error)
	p.Phone = strings.TrimSpace(p.Phone)
	for i := range p.IDs {
		p.IDs[i] = strings.TrimSpace(p.IDs[i])
	}
}
