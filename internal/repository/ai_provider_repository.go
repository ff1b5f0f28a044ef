package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const aiProviderColumns = `id, name, type, status, COALESCE(api_key, ''), COALESCE(endpoint, ''), models, cost_per_thousand, settings, created_at`

// AIProviderRepository is the admin-managed provider catalogue.
type AIProviderRepository struct {
	db *pgxpool.Pool
}

func NewAIProviderRepository(db *pgxpool.Pool) *AIProviderRepository {
	return &AIProviderRepository{db: db}
}

func scanAIProvider(row pgx.Row) (*entities.AIProvider, error) {
	var p entities.AIProvider
	var models []byte
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Status, &p.APIKey, &p.Endpoint, &models, &p.CostPerThousand, &p.Settings, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(models) > 0 {
		_ = json.Unmarshal(models, &p.Models)
	}
	if p.Models == nil {
		p.Models = []string{}
	}
	return &p, nil
}

func (r *AIProviderRepository) List(ctx context.Context) ([]entities.AIProvider, error) {
	rows, err := r.db.Query(ctx, "SELECT "+aiProviderColumns+" FROM ai_providers ORDER BY id ASC")
	if err != nil {
		return nil, errors.Wrap(err, "list ai providers")
	}
	defer rows.Close()

	out := []entities.AIProvider{}
	for rows.Next() {
		p, err := scanAIProvider(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan ai provider")
		}
		out = append(out, *p)
	}
	return out, errors.Wrap(rows.Err(), "iterate ai providers")
}

func (r *AIProviderRepository) Get(ctx context.Context, id int64) (*entities.AIProvider, error) {
	p, err := scanAIProvider(r.db.QueryRow(ctx, "SELECT "+aiProviderColumns+" FROM ai_providers WHERE id = $1", id))
	return p, errors.Wrap(err, "get ai provider")
}

func modelsJSON(models []string) []byte {
	if models == nil {
		models = []string{}
	}
	buf, _ := json.Marshal(models)
	return buf
}

func (r *AIProviderRepository) Create(ctx context.Context, p *entities.AIProvider) (*entities.AIProvider, error) {
	out, err := scanAIProvider(r.db.QueryRow(ctx, `
		INSERT INTO ai_providers (name, type, status, api_key, endpoint, models, cost_per_thousand, settings)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6::jsonb, $7, $8)
		RETURNING `+aiProviderColumns,
		p.Name, p.Type, p.Status, p.APIKey, p.Endpoint, string(modelsJSON(p.Models)), p.CostPerThousand, jsonOrEmpty(p.Settings)))
	return out, errors.Wrap(err, "insert ai provider")
}

// Update replaces the row; an empty api key keeps the stored one.
func (r *AIProviderRepository) Update(ctx context.Context, p *entities.AIProvider) (*entities.AIProvider, error) {
	out, err := scanAIProvider(r.db.QueryRow(ctx, `
		UPDATE ai_providers SET
			name = $2, type = $3, status = $4,
			api_key = COALESCE(NULLIF($5, ''), api_key),
			endpoint = NULLIF($6, ''),
			models = $7::jsonb,
			cost_per_thousand = $8,
			settings = $9
		WHERE id = $1
		RETURNING `+aiProviderColumns,
		p.ID, p.Name, p.Type, p.Status, p.APIKey, p.Endpoint, string(modelsJSON(p.Models)), p.CostPerThousand, jsonOrEmpty(p.Settings)))
	return out, errors.Wrap(err, "update ai provider")
}

func (r *AIProviderRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM ai_providers WHERE id = $1", id)
	if err != nil {
		return false, errors.Wrap(err, "delete ai provider")
	}
	return tag.RowsAffected() > 0, nil
}
