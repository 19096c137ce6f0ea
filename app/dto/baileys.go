package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type BaileysWebhook struct {
	Event              string          `json:"event"`
	Data               json.RawMessage `json:"data"`
	WebhookVerifyToken string          `json:"webhookVerifyToken"`
}

type BaileysConnectionUpdate struct {
	Connection string `json:"connection"`
	QR         string `json:"qr"`
}

type BaileysMessageKey struct {
	ID        string `json:"id"`
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
}

type BaileysMessageUpdate struct {
	Key    BaileysMessageKey `json:"key"`
	Update struct {
		Status BaileysStatus `json:"status"`
	} `json:"update"`
}

// BaileysStatus is a WebMessageInfo ack, sent either as a number or a name.
type BaileysStatus string

// UnmarshalJSON accepts numbers and strings.
func (s *BaileysStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = BaileysStatus(strings.TrimSpace(str))
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("baileys status: %w", err)
	}
	*s = BaileysStatus(strconv.FormatInt(n, 10))
	return nil
}

// ParseBaileysWebhook decodes and normalizes a Baileys callback body.
func ParseBaileysWebhook(body []byte) (BaileysWebhook, error) {
	var payload BaileysWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return BaileysWebhook{}, err
	}
	payload.Event = strings.TrimSpace(payload.Event)
	return payload, nil
}

// HasData reports whether the data field carries anything.
func (w BaileysWebhook) HasData() bool {
	switch string(bytes.TrimSpace(w.Data)) {
	case "", "null", "{}", "[]", `""`:
		return false
	}
	return true
}

// NormalizedEvent turns "messages.update" or "connection-update" into a
// dispatch key like "messages_update".
func (w BaileysWebhook) NormalizedEvent() string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(w.Event)
}

// ConnectionUpdate decodes data as a connection.update payload.
func (w BaileysWebhook) ConnectionUpdate() (BaileysConnectionUpdate, error) {
	var update BaileysConnectionUpdate
	if err := json.Unmarshal(w.Data, &update); err != nil {
		return BaileysConnectionUpdate{}, err
	}
	update.Connection = strings.TrimSpace(update.Connection)
	return update, nil
}

// MessageUpdates decodes data as a messages.update payload.
func (w BaileysWebhook) MessageUpdates() ([]BaileysMessageUpdate, error) {
	var updates []BaileysMessageUpdate
	if err := json.Unmarshal(w.Data, &updates); err != nil {
		return nil, err
	}
	for i := range updates {
		updates[i].Key.ID = strings.TrimSpace(updates[i].Key.ID)
	}
	return updates, nil
}
