package db

import (
	"context"

	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// NotificationRepository implements outbound.NotificationRepository on the notification table
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Create inserts a notification row
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notification (id, user_id, content, read, created_at)
		VALUES (:id, :user_id, :content, :read, :created_at)
	`

	if _, err := r.conn.GetDB().NamedExecContext(ctx, query, n); err != nil {
		return shared.NewStoreError("create notification", err)
	}
	return nil
}

// ListByUser retrieves a user's notifications, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*notification.Notification, error) {
	query := `
		SELECT id, user_id, content, read, created_at
		FROM notification
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	list := make([]*notification.Notification, 0)
	if err := r.conn.GetDB().SelectContext(ctx, &list, query, userID); err != nil {
		return nil, shared.NewStoreError("list notifications", err)
	}
	return list, nil
}
