package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
)

var ErrChannelNotFound = errors.New("channel not found")

type ChannelRepository struct {
	db *sql.DB
}

// NewChannelRepository constructs a repository backed by MySQL.
func NewChannelRepository(db *sql.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// GetByID loads a channel with its provider configuration.
func (r *ChannelRepository) GetByID(ctx context.Context, id int64) (*entity.Channel, error) {
	const query = `
		SELECT id, provider, phone_number, webhook_verify_token, provider_instance_id, provider_token,
			connection, connection_error, connection_qr, updated_at
		FROM channels
		WHERE id = ?
	`
	var (
		ch         entity.Channel
		connection string
		connErr    sql.NullString
		connQR     sql.NullString
		updatedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ch.ID, &ch.Provider, &ch.PhoneNumber, &ch.WebhookVerifyToken, &ch.ProviderInstanceID, &ch.ProviderToken,
		&connection, &connErr, &connQR, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}

	ch.Connection = entity.ConnectionState(connection)
	if connErr.Valid {
		ch.ConnectionError = &connErr.String
	}
	if connQR.Valid {
		ch.ConnectionQR = &connQR.String
	}
	if updatedAt.Valid {
		ch.UpdatedAt = updatedAt.Time
	}
	return &ch, nil
}

// UpdateConnection replaces the stored provider connection snapshot.
func (r *ChannelRepository) UpdateConnection(ctx context.Context, id int64, conn entity.Connection) error {
	const query = `
		UPDATE channels
		SET connection = ?, connection_error = ?, connection_qr = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, string(conn.State), conn.Error, conn.QR, id)
	return err
}
