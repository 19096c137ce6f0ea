package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/lock"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/repository"
)

var (
	ErrInvalidEvent = errors.New("invalid status event")
	// ErrConflict means the message kept changing underneath every
	// compare-and-set attempt. Callers should treat it as retryable.
	ErrConflict = errors.New("message status changed concurrently")
)

const (
	lockTTL        = 10 * time.Second
	maxCASAttempts = 5

	// maxErrorLength matches the width of messages.external_error.
	maxErrorLength = 1024
)

// MessageStore is the persistence the reconciler needs from messages.
type MessageStore interface {
	FindByExternalID(ctx context.Context, channelID int64, externalID string) (*entity.Message, error)
	CompareAndSetStatus(ctx context.Context, id int64, expected entity.MessageStatus, update entity.StatusUpdate) (bool, error)
	UpdateError(ctx context.Context, id int64, externalError string) error
}

// StatusEvent is one provider callback normalized for reconciliation.
type StatusEvent struct {
	ChannelID   int64
	Provider    string
	ExternalIDs []string
	Code        string
	Error       string
	// Timestamp is the provider moment in epoch milliseconds, nil when absent.
	Timestamp *int64
}

// Result lists what happened to each external id of an event.
type Result struct {
	Updated   []string
	Annotated []string
	Skipped   []string
	Missing   []string
	Unmapped  bool
}

type outcome int

const (
	outcomeUpdated outcome = iota
	outcomeAnnotated
	outcomeSkipped
	outcomeMissing
)

type Reconciler struct {
	store  MessageStore
	locker lock.Locker
	retry  lock.Retry
	logger logrus.FieldLogger
}

// NewReconciler builds a reconciler over the message store. The locker
// serializes updates per message across workers and replicas.
func NewReconciler(store MessageStore, locker lock.Locker, logger logrus.FieldLogger) *Reconciler {
	return &Reconciler{store: store, locker: locker, retry: lock.DefaultRetry, logger: logger}
}

// Reconcile applies a provider status event to every message it names.
// Unknown codes, unknown ids and non-forward transitions are not errors.
func (r *Reconciler) Reconcile(ctx context.Context, event StatusEvent) (Result, error) {
	if err := event.validate(); err != nil {
		return Result{}, err
	}

	incoming, ok := MapStatus(event.Provider, event.Code)
	if !ok {
		r.logger.Warnf("Unknown %s status: %s", event.Provider, event.Code)
		return Result{Unmapped: true}, nil
	}

	var seconds *int64
	if event.Timestamp != nil {
		s := *event.Timestamp / 1000
		seconds = &s
	}

	errText := truncateError(event.Error)

	var result Result
	seen := make(map[string]struct{}, len(event.ExternalIDs))
	for _, raw := range event.ExternalIDs {
		externalID := strings.TrimSpace(raw)
		if _, dup := seen[externalID]; dup {
			continue
		}
		seen[externalID] = struct{}{}

		out, err := r.apply(ctx, event.ChannelID, externalID, incoming, errText, seconds)
		if err != nil {
			return result, fmt.Errorf("reconcile %s: %w", externalID, err)
		}
		switch out {
		case outcomeUpdated:
			result.Updated = append(result.Updated, externalID)
		case outcomeAnnotated:
			result.Annotated = append(result.Annotated, externalID)
		case outcomeSkipped:
			result.Skipped = append(result.Skipped, externalID)
		case outcomeMissing:
			result.Missing = append(result.Missing, externalID)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"channel_id": event.ChannelID,
		"provider":   event.Provider,
		"code":       event.Code,
		"updated":    len(result.Updated),
		"skipped":    len(result.Skipped) + len(result.Annotated),
		"missing":    len(result.Missing),
	}).Debug("status event reconciled")

	return result, nil
}

// apply runs the read-modify-write for one message under its lock.
func (r *Reconciler) apply(ctx context.Context, channelID int64, externalID string, incoming entity.MessageStatus, errText string, seconds *int64) (outcome, error) {
	key := lock.Key("message-status", strconv.FormatInt(channelID, 10), externalID)
	if err := lock.AcquireWithRetry(ctx, r.locker, key, lockTTL, r.retry); err != nil {
		return 0, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		_ = r.locker.Release(context.Background(), key)
	}()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		msg, err := r.store.FindByExternalID(ctx, channelID, externalID)
		if errors.Is(err, repository.ErrMessageNotFound) {
			return outcomeMissing, nil
		}
		if err != nil {
			return 0, fmt.Errorf("find message: %w", err)
		}

		next, move := nextStatus(msg.Status, incoming, errText != "")
		if !move {
			if errText == "" || (msg.ExternalError != nil && *msg.ExternalError == errText) {
				return outcomeSkipped, nil
			}
			if err := r.store.UpdateError(ctx, msg.ID, errText); err != nil {
				return 0, fmt.Errorf("update error: %w", err)
			}
			return outcomeAnnotated, nil
		}

		update := entity.StatusUpdate{Status: next, Timestamp: seconds}
		if errText != "" {
			update.Error = &errText
		}
		applied, err := r.store.CompareAndSetStatus(ctx, msg.ID, msg.Status, update)
		if err != nil {
			return 0, fmt.Errorf("update status: %w", err)
		}
		if applied {
			return outcomeUpdated, nil
		}

		r.logger.WithFields(logrus.Fields{
			"channel_id":  channelID,
			"external_id": externalID,
			"attempt":     attempt + 1,
		}).Debug("message status changed concurrently, re-reading")
	}

	return 0, ErrConflict
}

// truncateError cuts provider error text to the stored width without
// splitting a UTF-8 sequence.
func truncateError(text string) string {
	if len(text) <= maxErrorLength {
		return text
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func (e StatusEvent) validate() error {
	if e.ChannelID <= 0 {
		return fmt.Errorf("%w: channel id is required", ErrInvalidEvent)
	}
	if !SupportedProvider(e.Provider) {
		return fmt.Errorf("%w: unsupported provider %q", ErrInvalidEvent, e.Provider)
	}
	if len(e.ExternalIDs) == 0 {
		return fmt.Errorf("%w: at least one message id is required", ErrInvalidEvent)
	}
	for _, id := range e.ExternalIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: message id must not be blank", ErrInvalidEvent)
		}
	}
	if strings.TrimSpace(e.Code) == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidEvent)
	}
	if e.Timestamp != nil && *e.Timestamp < 0 {
		return fmt.Errorf("%w: timestamp must not be negative", ErrInvalidEvent)
	}
	return nil
}
