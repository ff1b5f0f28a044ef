package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const notificationColumns = `id, user_id, type, title, message, metadata, is_read, created_at`

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func scanNotification(row pgx.Row) (*entities.Notification, error) {
	var n entities.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Metadata, &n.IsRead, &n.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) Create(ctx context.Context, in entities.NotificationInput) (*entities.Notification, error) {
	var message *string
	if in.Message != "" {
		message = &in.Message
	}
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	n, err := scanNotification(r.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, title, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns, in.UserID, in.Type, in.Title, message, metadata))
	return n, errors.Wrap(err, "insert notification")
}

func (r *NotificationRepository) List(ctx context.Context, userID, limit, offset int) ([]entities.Notification, error) {
	rows, err := r.db.Query(ctx, "SELECT "+notificationColumns+` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	defer rows.Close()

	out := []entities.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		out = append(out, *n)
	}
	return out, errors.Wrap(rows.Err(), "iterate notifications")
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID int, id int64) (*entities.Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns, id, userID))
	return n, errors.Wrap(err, "mark notification read")
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int) (int64, error) {
	tag, err := r.db.Exec(ctx, "UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE", userID)
	if err != nil {
		return 0, errors.Wrap(err, "mark all read")
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) Delete(ctx context.Context, userID int, id int64) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM notifications WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return 0, errors.Wrap(err, "delete notification")
	}
	return tag.RowsAffected(), nil
}
