package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository constructs a repository backed by MySQL.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// FindByExternalID loads the message a provider identifies by externalID on a channel.
func (r *MessageRepository) FindByExternalID(ctx context.Context, channelID int64, externalID string) (*entity.Message, error) {
	const query = `
		SELECT id, channel_id, external_id, status, external_error, external_timestamp, updated_at
		FROM messages
		WHERE channel_id = ? AND external_id = ?
	`
	var (
		msg       entity.Message
		status    string
		extErr    sql.NullString
		extTime   sql.NullInt64
		updatedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, channelID, externalID).
		Scan(&msg.ID, &msg.ChannelID, &msg.ExternalID, &status, &extErr, &extTime, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	msg.Status = entity.MessageStatus(status)
	if extErr.Valid {
		msg.ExternalError = &extErr.String
	}
	if extTime.Valid {
		msg.ExternalTimestamp = &extTime.Int64
	}
	if updatedAt.Valid {
		msg.UpdatedAt = updatedAt.Time
	}
	return &msg, nil
}

// CompareAndSetStatus writes the update only while the stored status still
// equals expected. It reports whether the row was changed.
func (r *MessageRepository) CompareAndSetStatus(ctx context.Context, id int64, expected entity.MessageStatus, update entity.StatusUpdate) (bool, error) {
	const query = `
		UPDATE messages
		SET status = ?,
			external_error = COALESCE(?, external_error),
			external_timestamp = COALESCE(?, external_timestamp),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`
	res, err := r.db.ExecContext(ctx, query, string(update.Status), update.Error, update.Timestamp, id, string(expected))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// UpdateError sets the provider error annotation without touching the status.
func (r *MessageRepository) UpdateError(ctx context.Context, id int64, externalError string) error {
	const query = `
		UPDATE messages
		SET external_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, externalError, id)
	return err
}
