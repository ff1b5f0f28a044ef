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

const userColumns = `id, email, password_hash, full_name, phone, company_name, role, status, plan, language, last_active_at, created_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.CompanyName,
		&u.Role, &u.Status, &u.Plan, &u.Language, &u.LastActiveAt, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	role := user.Role
	if role == "" {
		role = entities.RoleUser
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, full_name, phone, company_name, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, role, status, plan, language, created_at`,
		user.Email, user.PasswordHash, user.FullName, user.Phone, user.CompanyName, role,
	).Scan(&user.ID, &user.Role, &user.Status, &user.Plan, &user.Language, &user.CreatedAt)
	return errors.Wrap(err, "insert user")
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
	return u, errors.Wrap(err, "get user by email")
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*entities.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	return u, errors.Wrap(err, "get user")
}

func (r *UserRepository) TouchLastActive(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx, "UPDATE users SET last_active_at = NOW() WHERE id = $1", id)
	return errors.Wrap(err, "touch user")
}

func (r *UserRepository) SetRole(ctx context.Context, id int, role string) error {
	_, err := r.db.Exec(ctx, "UPDATE users SET role = $2 WHERE id = $1", id, role)
	return errors.Wrap(err, "set role")
}

// SetResetToken stores the sha256 of a reset token.
func (r *UserRepository) SetResetToken(ctx context.Context, id int, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET reset_password_token = $2, reset_password_expires_at = $3 WHERE id = $1`,
		id, tokenHash, expiresAt)
	return errors.Wrap(err, "set reset token")
}

// GetByResetToken only matches tokens that have not expired.
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string) (*entities.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+` FROM users
		WHERE reset_password_token = $1 AND reset_password_expires_at > NOW()`, tokenHash))
	return u, errors.Wrap(err, "get user by reset token")
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, reset_password_token = NULL, reset_password_expires_at = NULL
		WHERE id = $1`, id, passwordHash)
	return errors.Wrap(err, "update password")
}

func (r *UserRepository) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET reset_password_token = NULL, reset_password_expires_at = NULL
		WHERE reset_password_token IS NOT NULL AND reset_password_expires_at <= NOW()`)
	if err != nil {
		return 0, errors.Wrap(err, "purge reset tokens")
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) UpdateLanguage(ctx context.Context, id int, language string) error {
	_, err := r.db.Exec(ctx, "UPDATE users SET language = $2 WHERE id = $1", id, language)
	return errors.Wrap(err, "update language")
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id int, status string) (*entities.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		"UPDATE users SET status = $2 WHERE id = $1 RETURNING "+userColumns, id, status))
	return u, errors.Wrap(err, "update user status")
}

func (r *UserRepository) UpdatePlan(ctx context.Context, id int, plan string) (*entities.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		"UPDATE users SET plan = $2 WHERE id = $1 RETURNING "+userColumns, id, plan))
	return u, errors.Wrap(err, "update user plan")
}

func (r *UserRepository) Delete(ctx context.Context, id int) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return false, errors.Wrap(err, "delete user")
	}
	return tag.RowsAffected() > 0, nil
}

// Counts returns total and active user counts.
func (r *UserRepository) Counts(ctx context.Context) (total, active int, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'active') FROM users`).Scan(&total, &active)
	return total, active, errors.Wrap(err, "count users")
}

func userWhere(f entities.UserFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if f.Plan != "" {
		args = append(args, f.Plan)
		clauses = append(clauses, fmt.Sprintf("u.plan = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("u.status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(u.email ILIKE $%d OR u.full_name ILIKE $%d OR u.company_name ILIKE $%d)", n, n, n))
	}
	return strings.Join(clauses, " AND "), args
}

// ListWithUsage pages users with their lifetime usage counters. PageSize <= 0 returns every row.
func (r *UserRepository) ListWithUsage(ctx context.Context, f entities.UserFilter) ([]entities.UserUsage, int, error) {
	where, args := userWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users u WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count users")
	}

	query := `
		SELECT u.id, u.email, u.password_hash, u.full_name, u.phone, u.company_name, u.role, u.status,
			u.plan, u.language, u.last_active_at, u.created_at,
			COALESCE(SUM(m.messages_sent), 0), COALESCE(SUM(m.messages_received), 0), COALESCE(SUM(m.ai_calls), 0)
		FROM users u
		LEFT JOIN message_usage m ON m.user_id = u.id
		WHERE ` + where + `
		GROUP BY u.id
		ORDER BY u.created_at DESC`
	if f.PageSize > 0 {
		args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	out := []entities.UserUsage{}
	for rows.Next() {
		var u entities.UserUsage
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.CompanyName,
			&u.Role, &u.Status, &u.Plan, &u.Language, &u.LastActiveAt, &u.CreatedAt,
			&u.MessagesSent, &u.MessagesReceived, &u.AICalls); err != nil {
			return nil, 0, errors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	return out, total, errors.Wrap(rows.Err(), "iterate users")
}
