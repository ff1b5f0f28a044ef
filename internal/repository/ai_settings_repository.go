package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const aiSettingsColumns = `id, user_id, provider, model, temperature, max_tokens, system_prompt, settings_json`

type AISettingsRepository struct {
	db *pgxpool.Pool
}

func NewAISettingsRepository(db *pgxpool.Pool) *AISettingsRepository {
	return &AISettingsRepository{db: db}
}

func scanAISettings(row pgx.Row) (*entities.AISettings, error) {
	var s entities.AISettings
	err := row.Scan(&s.ID, &s.UserID, &s.Provider, &s.Model, &s.Temperature, &s.MaxTokens, &s.SystemPrompt, &s.Settings)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *AISettingsRepository) Get(ctx context.Context, userID int, provider string) (*entities.AISettings, error) {
	s, err := scanAISettings(r.db.QueryRow(ctx, "SELECT "+aiSettingsColumns+
		" FROM ai_settings WHERE user_id = $1 AND provider = $2", userID, provider))
	return s, errors.Wrap(err, "get ai settings")
}

func (r *AISettingsRepository) List(ctx context.Context, userID int) ([]entities.AISettings, error) {
	rows, err := r.db.Query(ctx, "SELECT "+aiSettingsColumns+
		" FROM ai_settings WHERE user_id = $1 ORDER BY id DESC", userID)
	if err != nil {
		return nil, errors.Wrap(err, "list ai settings")
	}
	defer rows.Close()

	out := []entities.AISettings{}
	for rows.Next() {
		s, err := scanAISettings(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan ai settings")
		}
		out = append(out, *s)
	}
	return out, errors.Wrap(rows.Err(), "iterate ai settings")
}

// GetDefault returns the row flagged is_default, if any.
func (r *AISettingsRepository) GetDefault(ctx context.Context, userID int) (*entities.AISettings, error) {
	s, err := scanAISettings(r.db.QueryRow(ctx, "SELECT "+aiSettingsColumns+` FROM ai_settings
		WHERE user_id = $1 AND (settings_json->>'is_default')::boolean IS TRUE
		ORDER BY id DESC LIMIT 1`, userID))
	return s, errors.Wrap(err, "get default ai settings")
}

// Upsert writes one row per (user, provider).
func (r *AISettingsRepository) Upsert(ctx context.Context, s *entities.AISettings) (*entities.AISettings, error) {
	out, err := scanAISettings(r.db.QueryRow(ctx, `
		INSERT INTO ai_settings (user_id, provider, model, temperature, max_tokens, system_prompt, settings_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, provider) DO UPDATE
		SET model = EXCLUDED.model,
			temperature = EXCLUDED.temperature,
			max_tokens = EXCLUDED.max_tokens,
			system_prompt = EXCLUDED.system_prompt,
			settings_json = EXCLUDED.settings_json
		RETURNING `+aiSettingsColumns,
		s.UserID, s.Provider, s.Model, s.Temperature, s.MaxTokens, s.SystemPrompt, jsonOrEmpty(s.Settings)))
	return out, errors.Wrap(err, "upsert ai settings")
}

// SwitchDefault moves the is_default flag to provider. Returns nil when the
// tenant has no row for it, leaving the previous default untouched.
func (r *AISettingsRepository) SwitchDefault(ctx context.Context, userID int, provider string) (*entities.AISettings, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin switch")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE ai_settings SET settings_json = settings_json - 'is_default' WHERE user_id = $1`, userID); err != nil {
		return nil, errors.Wrap(err, "clear default")
	}

	s, err := scanAISettings(tx.QueryRow(ctx, `
		UPDATE ai_settings
		SET settings_json = jsonb_set(COALESCE(settings_json, '{}'::jsonb), '{is_default}', 'true'::jsonb)
		WHERE user_id = $1 AND provider = $2
		RETURNING `+aiSettingsColumns, userID, provider))
	if err != nil {
		return nil, errors.Wrap(err, "set default")
	}
	if s == nil {
		return nil, nil
	}
	return s, errors.Wrap(tx.Commit(ctx), "commit switch")
}
