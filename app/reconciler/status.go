package reconciler

import (
	"strings"

	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
)

// Provider labels as they appear in diagnostics.
const (
	ProviderZAPI    = "ZAPI"
	ProviderBaileys = "Baileys"
)

var zapiStatuses = map[string]entity.MessageStatus{
	"SENT":       entity.MessageStatusSent,
	"DELIVERED":  entity.MessageStatusDelivered,
	"RECEIVED":   entity.MessageStatusDelivered,
	"READ":       entity.MessageStatusRead,
	"READ_BY_ME": entity.MessageStatusRead,
	"PLAYED":     entity.MessageStatusRead,
}

// Baileys reports WebMessageInfo ack values, either numeric or by name.
// PENDING (1) means the server has not acked yet and has no canonical status.
var baileysStatuses = map[string]entity.MessageStatus{
	"0":            entity.MessageStatusFailed,
	"ERROR":        entity.MessageStatusFailed,
	"2":            entity.MessageStatusSent,
	"SERVER_ACK":   entity.MessageStatusSent,
	"3":            entity.MessageStatusDelivered,
	"DELIVERY_ACK": entity.MessageStatusDelivered,
	"4":            entity.MessageStatusRead,
	"READ":         entity.MessageStatusRead,
	"5":            entity.MessageStatusRead,
	"PLAYED":       entity.MessageStatusRead,
}

var statusTables = map[string]map[string]entity.MessageStatus{
	ProviderZAPI:    zapiStatuses,
	ProviderBaileys: baileysStatuses,
}

// SupportedProvider reports whether provider has a status table.
func SupportedProvider(provider string) bool {
	_, ok := statusTables[provider]
	return ok
}

// MapStatus translates a provider status code to its canonical status.
func MapStatus(provider string, code string) (entity.MessageStatus, bool) {
	table, ok := statusTables[provider]
	if !ok {
		return "", false
	}
	status, ok := table[strings.TrimSpace(code)]
	return status, ok
}

// nextStatus decides the status a message moves to, if any. A failure
// (explicit error or a failed code) wins over the forward status carried by
// the same event, but only lands on a message that was not yet delivered.
func nextStatus(current entity.MessageStatus, incoming entity.MessageStatus, failed bool) (entity.MessageStatus, bool) {
	if failed || incoming == entity.MessageStatusFailed {
		if current != entity.MessageStatusSent {
			return "", false
		}
		return entity.MessageStatusFailed, true
	}
	if incoming.Rank() > current.Rank() {
		return incoming, true
	}
	return "", false
}
