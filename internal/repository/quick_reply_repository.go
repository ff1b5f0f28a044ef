package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const quickReplyColumns = `id, user_id, title, content, category, shortcut, sort_order, created_at, updated_at`

type QuickReplyRepository struct {
	db *pgxpool.Pool
}

func NewQuickReplyRepository(db *pgxpool.Pool) *QuickReplyRepository {
	return &QuickReplyRepository{db: db}
}

func scanQuickReply(row pgx.Row) (*entities.QuickReply, error) {
	var q entities.QuickReply
	err := row.Scan(&q.ID, &q.UserID, &q.Title, &q.Content, &q.Category, &q.Shortcut, &q.SortOrder, &q.CreatedAt, &q.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuickReplyRepository) List(ctx context.Context, userID int, search, category string) ([]entities.QuickReply, error) {
	clauses := []string{"user_id = $1"}
	args := []any{userID}
	if category != "" {
		args = append(args, category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR content ILIKE $%d OR shortcut ILIKE $%d)", n, n, n))
	}

	rows, err := r.db.Query(ctx, "SELECT "+quickReplyColumns+" FROM quick_replies WHERE "+
		strings.Join(clauses, " AND ")+" ORDER BY sort_order ASC, id ASC", args...)
	if err != nil {
		return nil, errors.Wrap(err, "list quick replies")
	}
	defer rows.Close()

	out := []entities.QuickReply{}
	for rows.Next() {
		q, err := scanQuickReply(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan quick reply")
		}
		out = append(out, *q)
	}
	return out, errors.Wrap(rows.Err(), "iterate quick replies")
}

// Create appends the reply after the tenant's current last position.
func (r *QuickReplyRepository) Create(ctx context.Context, q *entities.QuickReply) (*entities.QuickReply, error) {
	out, err := scanQuickReply(r.db.QueryRow(ctx, `
		INSERT INTO quick_replies (user_id, title, content, category, shortcut, sort_order)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(sort_order) + 1, 0) FROM quick_replies WHERE user_id = $1))
		RETURNING `+quickReplyColumns, q.UserID, q.Title, q.Content, q.Category, q.Shortcut))
	return out, errors.Wrap(err, "insert quick reply")
}

func (r *QuickReplyRepository) Update(ctx context.Context, userID int, id int64, title, content, category, shortcut *string) (*entities.QuickReply, error) {
	out, err := scanQuickReply(r.db.QueryRow(ctx, `
		UPDATE quick_replies SET
			title = COALESCE($3, title),
			content = COALESCE($4, content),
			category = COALESCE($5, category),
			shortcut = COALESCE($6, shortcut),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+quickReplyColumns, id, userID, title, content, category, shortcut))
	return out, errors.Wrap(err, "update quick reply")
}

func (r *QuickReplyRepository) Delete(ctx context.Context, userID int, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM quick_replies WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, errors.Wrap(err, "delete quick reply")
	}
	return tag.RowsAffected() > 0, nil
}

// Reorder sets sort_order to each id's index. Ids of other tenants are ignored.
func (r *QuickReplyRepository) Reorder(ctx context.Context, userID int, ids []int64) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, id := range ids {
			batch.Queue("UPDATE quick_replies SET sort_order = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2", id, userID, i)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return errors.Wrap(err, "reorder quick replies")
}
