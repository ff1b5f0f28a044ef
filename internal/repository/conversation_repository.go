package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const conversationColumns = `id, user_id, contact_phone, contact_name, status, priority, last_message_at, created_at, updated_at`

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func scanConversation(row pgx.Row) (*entities.Conversation, error) {
	var c entities.Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.ContactPhone, &c.ContactName, &c.Status, &c.Priority,
		&c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindLatestByPhone returns the newest conversation with a contact.
func (r *ConversationRepository) FindLatestByPhone(ctx context.Context, userID int, phone string) (*entities.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, "SELECT "+conversationColumns+` FROM conversations
		WHERE user_id = $1 AND contact_phone = $2
		ORDER BY created_at DESC LIMIT 1`, userID, phone))
	return c, errors.Wrap(err, "find conversation")
}

func (r *ConversationRepository) Create(ctx context.Context, userID int, phone string, name *string) (*entities.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, `
		INSERT INTO conversations (user_id, contact_phone, contact_name)
		VALUES ($1, $2, $3)
		RETURNING `+conversationColumns, userID, phone, name))
	return c, errors.Wrap(err, "insert conversation")
}

func (r *ConversationRepository) SetContactName(ctx context.Context, id int64, name string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations SET contact_name = $2, updated_at = NOW() WHERE id = $1`, id, name)
	return errors.Wrap(err, "set contact name")
}

func (r *ConversationRepository) TouchLastMessage(ctx context.Context, id int64, at time.Time) (*entities.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, `
		UPDATE conversations SET last_message_at = $2, updated_at = NOW()
		WHERE id = $1 RETURNING `+conversationColumns, id, at))
	return c, errors.Wrap(err, "touch conversation")
}

// Get is tenant scoped: another tenant's id reads as missing.
func (r *ConversationRepository) Get(ctx context.Context, userID int, id int64) (*entities.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, "SELECT "+conversationColumns+
		" FROM conversations WHERE id = $1 AND user_id = $2", id, userID))
	return c, errors.Wrap(err, "get conversation")
}

func (r *ConversationRepository) List(ctx context.Context, userID int, f entities.ConversationFilter) ([]entities.Conversation, int, error) {
	clauses := []string{"user_id = $1"}
	args := []any{userID}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != nil {
		args = append(args, *f.Priority)
		clauses = append(clauses, fmt.Sprintf("priority = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		clauses = append(clauses, fmt.Sprintf("(contact_phone ILIKE $%d OR contact_name ILIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM conversations WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count conversations")
	}

	order := "DESC"
	if f.Oldest {
		order = "ASC"
	}
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE %s
		ORDER BY COALESCE(last_message_at, created_at) %s, id %s
		LIMIT $%d OFFSET $%d`, conversationColumns, where, order, order, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list conversations")
	}
	defer rows.Close()

	out := []entities.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan conversation")
		}
		out = append(out, *c)
	}
	return out, total, errors.Wrap(rows.Err(), "iterate conversations")
}

// Update applies the non-nil fields.
func (r *ConversationRepository) Update(ctx context.Context, userID int, id int64, upd entities.ConversationUpdate) (*entities.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, `
		UPDATE conversations
		SET status = COALESCE($3, status), priority = COALESCE($4, priority), updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+conversationColumns, id, userID, upd.Status, upd.Priority))
	return c, errors.Wrap(err, "update conversation")
}

func (r *ConversationRepository) CountOpen(ctx context.Context, userID int) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM conversations WHERE user_id = $1 AND status IN ('open', 'pending')`, userID).Scan(&n)
	return n, errors.Wrap(err, "count open conversations")
}

// ArchiveClosedBefore archives closed threads untouched since cutoff.
func (r *ConversationRepository) ArchiveClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversations SET status = 'archived', updated_at = NOW()
		WHERE status = 'closed' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "archive conversations")
	}
	return tag.RowsAffected(), nil
}
