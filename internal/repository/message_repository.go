package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const messageColumns = `id, conversation_id, sender_type, message_text, media_url, media_type, external_id,
	intent, intent_confidence, timestamp, is_from_bot, created_at`

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func scanMessage(row pgx.Row) (*entities.Message, error) {
	var m entities.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderType, &m.MessageText, &m.MediaURL, &m.MediaType,
		&m.ExternalID, &m.Intent, &m.IntentConfidence, &m.Timestamp, &m.IsFromBot, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts m and fills its id and created_at.
func (r *MessageRepository) Create(ctx context.Context, m *entities.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_type, message_text, media_url, media_type, external_id,
			intent, intent_confidence, timestamp, is_from_bot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		m.ConversationID, m.SenderType, m.MessageText, m.MediaURL, m.MediaType, m.ExternalID,
		m.Intent, m.IntentConfidence, m.Timestamp, m.IsFromBot,
	).Scan(&m.ID, &m.CreatedAt)
	return errors.Wrap(err, "insert message")
}

func (r *MessageRepository) SetIntent(ctx context.Context, id int64, intent entities.Intent) error {
	_, err := r.db.Exec(ctx, "UPDATE messages SET intent = $2, intent_confidence = $3 WHERE id = $1",
		id, intent.Intent, intent.Confidence)
	return errors.Wrap(err, "set intent")
}

// ListByConversation returns messages newest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]entities.Message, error) {
	rows, err := r.db.Query(ctx, "SELECT "+messageColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2 OFFSET $3`, conversationID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()

	out := []entities.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		out = append(out, *m)
	}
	return out, errors.Wrap(rows.Err(), "iterate messages")
}

func (r *MessageRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM messages").Scan(&n)
	return n, errors.Wrap(err, "count messages")
}

// Traffic returns per-day inbound/outbound counts for a tenant since the given time.
func (r *MessageRepository) Traffic(ctx context.Context, userID int, since time.Time) ([]entities.DailyTraffic, error) {
	rows, err := r.db.Query(ctx, `
		SELECT to_char(date_trunc('day', m.timestamp), 'YYYY-MM-DD') AS day,
			COUNT(*) FILTER (WHERE m.sender_type = 'contact'),
			COUNT(*) FILTER (WHERE m.sender_type IN ('user', 'bot'))
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = $1 AND m.timestamp >= $2
		GROUP BY day
		ORDER BY day ASC`, userID, since)
	if err != nil {
		return nil, errors.Wrap(err, "traffic")
	}
	defer rows.Close()

	out := []entities.DailyTraffic{}
	for rows.Next() {
		var d entities.DailyTraffic
		if err := rows.Scan(&d.Date, &d.Inbound, &d.Outbound); err != nil {
			return nil, errors.Wrap(err, "scan traffic")
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "iterate traffic")
}

// IntentDistribution counts classified inbound messages by intent.
func (r *MessageRepository) IntentDistribution(ctx context.Context, userID int, since time.Time) ([]entities.NamedCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(m.intent, 'unknown'), COUNT(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = $1 AND m.timestamp >= $2 AND m.sender_type = 'contact'
		GROUP BY 1
		ORDER BY 2 DESC`, userID, since)
	if err != nil {
		return nil, errors.Wrap(err, "intent distribution")
	}
	defer rows.Close()

	out := []entities.NamedCount{}
	for rows.Next() {
		var n entities.NamedCount
		if err := rows.Scan(&n.Name, &n.Value); err != nil {
			return nil, errors.Wrap(err, "scan intent")
		}
		out = append(out, n)
	}
	return out, errors.Wrap(rows.Err(), "iterate intents")
}
