package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}
	if err := client.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

var schema = []struct {
	name string
	sql  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			full_name VARCHAR(255) NOT NULL,
			phone VARCHAR(32),
			company_name VARCHAR(255),
			role VARCHAR(20) NOT NULL DEFAULT 'user',
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			plan VARCHAR(32) NOT NULL DEFAULT 'free',
			language VARCHAR(8) NOT NULL DEFAULT 'ar',
			reset_password_token VARCHAR(128),
			reset_password_expires_at TIMESTAMPTZ,
			last_active_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"conversations", `
		CREATE TABLE IF NOT EXISTS conversations (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			contact_phone VARCHAR(32) NOT NULL,
			contact_name VARCHAR(255),
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			priority INT NOT NULL DEFAULT 0,
			last_message_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_user_phone ON conversations(user_id, contact_phone);`},
	{"messages", `
		CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_type VARCHAR(20) NOT NULL,
			message_text TEXT,
			media_url TEXT,
			media_type VARCHAR(32),
			external_id VARCHAR(128),
			intent VARCHAR(32),
			intent_confidence DOUBLE PRECISION,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_from_bot BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp DESC);`},
	{"knowledge_base", `
		CREATE TABLE IF NOT EXISTS knowledge_base (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			category VARCHAR(128),
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			embedding DOUBLE PRECISION[],
			source VARCHAR(32) NOT NULL DEFAULT 'manual',
			source_name VARCHAR(255),
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"knowledge_documents", `
		CREATE TABLE IF NOT EXISTS knowledge_documents (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			knowledge_id BIGINT,
			filename VARCHAR(255) NOT NULL,
			mime_type VARCHAR(128),
			file_size BIGINT NOT NULL DEFAULT 0,
			storage_path TEXT,
			text_content TEXT,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"ai_settings", `
		CREATE TABLE IF NOT EXISTS ai_settings (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider VARCHAR(20) NOT NULL,
			model VARCHAR(128) NOT NULL,
			temperature DOUBLE PRECISION NOT NULL DEFAULT 0.7,
			max_tokens INT,
			system_prompt TEXT,
			settings_json JSONB NOT NULL DEFAULT '{}'::jsonb,
			UNIQUE (user_id, provider)
		);`},
	{"notifications", `
		CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type VARCHAR(16) NOT NULL DEFAULT 'info',
			title VARCHAR(255) NOT NULL,
			message TEXT,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"whatsapp_sessions", `
		CREATE TABLE IF NOT EXISTS whatsapp_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			phone_number VARCHAR(32) NOT NULL DEFAULT 'unknown',
			session_data JSONB NOT NULL DEFAULT '{}'::jsonb,
			is_connected BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, phone_number)
		);`},
	{"quick_replies", `
		CREATE TABLE IF NOT EXISTS quick_replies (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			category VARCHAR(128),
			shortcut VARCHAR(64),
			sort_order INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"plans", `
		CREATE TABLE IF NOT EXISTS plans (
			id VARCHAR(32) PRIMARY KEY,
			name VARCHAR(128) NOT NULL,
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency VARCHAR(32) NOT NULL DEFAULT 'USD/month',
			message_limit INT NOT NULL DEFAULT 0,
			whatsapp_accounts INT NOT NULL DEFAULT 1,
			features JSONB NOT NULL DEFAULT '[]'::jsonb
		);
		INSERT INTO plans (id, name, price, message_limit, whatsapp_accounts) VALUES
			('free', 'Free Plan', 0, 500, 1),
			('basic', 'Basic Plan', 49, 5000, 2),
			('pro', 'Pro Plan', 149, 20000, 5),
			('enterprise', 'Enterprise Plan', 399, 100000, 15)
		ON CONFLICT (id) DO NOTHING;`},
	{"ai_providers", `
		CREATE TABLE IF NOT EXISTS ai_providers (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(128) NOT NULL,
			type VARCHAR(32) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			api_key TEXT,
			endpoint TEXT,
			models JSONB NOT NULL DEFAULT '[]'::jsonb,
			cost_per_thousand DOUBLE PRECISION NOT NULL DEFAULT 0,
			settings JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"message_usage", `
		CREATE TABLE IF NOT EXISTS message_usage (
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			date DATE NOT NULL,
			messages_sent INT NOT NULL DEFAULT 0,
			messages_received INT NOT NULL DEFAULT 0,
			ai_calls INT NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, date)
		);`},
}

// Migrate creates the schema. Statements are idempotent.
func (p *PostgresClient) Migrate(ctx context.Context) error {
	for _, step := range schema {
		if _, err := p.Pool.Exec(ctx, step.sql); err != nil {
			return fmt.Errorf("create %s table: %w", step.name, err)
		}
	}
	zap.L().Info("postgres: schema ready", zap.Int("tables", len(schema)))
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
