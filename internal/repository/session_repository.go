package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// SessionRepository persists WhatsApp connection snapshots. Device keys live
// in the per-tenant sqlite store, not here.
type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Save(ctx context.Context, userID int, phone string, data map[string]any, connected bool) error {
	if phone == "" {
		phone = "unknown"
	}
	if data == nil {
		data = map[string]any{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO whatsapp_sessions (user_id, phone_number, session_data, is_connected)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, phone_number) DO UPDATE
		SET session_data = EXCLUDED.session_data,
			is_connected = EXCLUDED.is_connected,
			updated_at = NOW()`, userID, phone, data, connected)
	return errors.Wrap(err, "save session")
}

// MarkDisconnected flips every row of the tenant and upserts the snapshot
// for phone, so sessions that never authenticated still record the reason.
func (r *SessionRepository) MarkDisconnected(ctx context.Context, userID int, phone string, data map[string]any) error {
	if phone == "" {
		phone = "unknown"
	}
	if data == nil {
		data = map[string]any{}
	}
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE whatsapp_sessions SET is_connected = FALSE, updated_at = NOW()
			WHERE user_id = $1 AND is_connected`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO whatsapp_sessions (user_id, phone_number, session_data, is_connected)
			VALUES ($1, $2, $3, FALSE)
			ON CONFLICT (user_id, phone_number) DO UPDATE
			SET session_data = EXCLUDED.session_data,
				is_connected = FALSE,
				updated_at = NOW()`, userID, phone, data)
		return err
	})
	return errors.Wrap(err, "mark session disconnected")
}

// ConnectedUsers lists tenants whose latest snapshot is connected.
func (r *SessionRepository) ConnectedUsers(ctx context.Context) ([]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id FROM (
			SELECT DISTINCT ON (user_id) user_id, is_connected
			FROM whatsapp_sessions
			ORDER BY user_id, updated_at DESC
		) latest WHERE is_connected`)
	if err != nil {
		return nil, errors.Wrap(err, "connected sessions")
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate sessions")
}
