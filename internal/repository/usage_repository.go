package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// UsageRepository keeps per-day message and AI call counters.
type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) increment(ctx context.Context, userID int, column string) error {
	today := time.Now().Format("2006-01-02")
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (user_id, date, `+column+`)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, date)
		DO UPDATE SET `+column+` = message_usage.`+column+` + 1
	`, userID, today)
	return errors.Wrapf(err, "increment %s", column)
}

func (r *UsageRepository) IncrementSent(ctx context.Context, userID int) error {
	return r.increment(ctx, userID, "messages_sent")
}

func (r *UsageRepository) IncrementReceived(ctx context.Context, userID int) error {
	return r.increment(ctx, userID, "messages_received")
}

func (r *UsageRepository) IncrementAICalls(ctx context.Context, userID int) error {
	return r.increment(ctx, userID, "ai_calls")
}

// MonthSent returns this month's outbound message count.
func (r *UsageRepository) MonthSent(ctx context.Context, userID int) (int, error) {
	firstOfMonth := time.Now().Format("2006-01") + "-01"
	var sent int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(messages_sent), 0)
		FROM message_usage WHERE user_id = $1 AND date >= $2
	`, userID, firstOfMonth).Scan(&sent)
	return sent, errors.Wrap(err, "month usage")
}

// TotalAICalls sums ai_calls across all tenants.
func (r *UsageRepository) TotalAICalls(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, "SELECT COALESCE(SUM(ai_calls), 0) FROM message_usage").Scan(&n)
	return n, errors.Wrap(err, "total ai calls")
}
