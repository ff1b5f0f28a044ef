package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

const planSelect = `
	SELECT p.id, p.name, p.price, p.currency, p.message_limit, p.whatsapp_accounts, p.features,
		(SELECT COUNT(*) FROM users u WHERE u.plan = p.id)
	FROM plans p`

func scanPlan(row pgx.Row) (*entities.Plan, error) {
	var p entities.Plan
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Currency, &p.MessageLimit, &p.WhatsAppAccounts, &p.Features, &p.Subscribers)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns plans with their subscriber counts, cheapest first.
func (r *PlanRepository) List(ctx context.Context) ([]entities.Plan, error) {
	rows, err := r.db.Query(ctx, planSelect+" ORDER BY p.price ASC")
	if err != nil {
		return nil, errors.Wrap(err, "list plans")
	}
	defer rows.Close()

	out := []entities.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan plan")
		}
		out = append(out, *p)
	}
	return out, errors.Wrap(rows.Err(), "iterate plans")
}

func (r *PlanRepository) Get(ctx context.Context, id string) (*entities.Plan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx, planSelect+" WHERE p.id = $1", id))
	return p, errors.Wrap(err, "get plan")
}

func (r *PlanRepository) Update(ctx context.Context, id string, patch entities.PlanPatch) (*entities.Plan, error) {
	var features any
	if len(patch.Features) > 0 {
		features = patch.Features
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE plans SET
			name = COALESCE($2, name),
			price = COALESCE($3, price),
			message_limit = COALESCE($4, message_limit),
			whatsapp_accounts = COALESCE($5, whatsapp_accounts),
			features = COALESCE($6::jsonb, features)
		WHERE id = $1`, id, patch.Name, patch.Price, patch.MessageLimit, patch.WhatsAppAccounts, features)
	if err != nil {
		return nil, errors.Wrap(err, "update plan")
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return r.Get(ctx, id)
}
