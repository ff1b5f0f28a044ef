package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const knowledgeColumns = `id, user_id, category, question, answer, embedding, source, source_name, metadata, created_at, updated_at`

// searchPrefilterLimit caps the rows ranked in memory by a semantic search.
const searchPrefilterLimit = 250

type KnowledgeRepository struct {
	db *pgxpool.Pool
}

func NewKnowledgeRepository(db *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

func scanKnowledge(row pgx.Row) (*entities.KnowledgeEntry, error) {
	var k entities.KnowledgeEntry
	err := row.Scan(&k.ID, &k.UserID, &k.Category, &k.Question, &k.Answer, &k.Embedding, &k.Source,
		&k.SourceName, &k.Metadata, &k.CreatedAt, &k.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func collectKnowledge(rows pgx.Rows) ([]entities.KnowledgeEntry, error) {
	defer rows.Close()
	out := []entities.KnowledgeEntry{}
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan knowledge")
		}
		out = append(out, *k)
	}
	return out, errors.Wrap(rows.Err(), "iterate knowledge")
}

func jsonOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`)
	}
	return raw
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertKnowledge(ctx context.Context, db queryRower, e *entities.KnowledgeEntry) error {
	if e.Source == "" {
		e.Source = entities.KnowledgeSourceManual
	}
	e.Metadata = jsonOrEmpty(e.Metadata)
	err := db.QueryRow(ctx, `
		INSERT INTO knowledge_base (user_id, category, question, answer, embedding, source, source_name, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		e.UserID, e.Category, e.Question, e.Answer, e.Embedding, e.Source, e.SourceName, e.Metadata,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return errors.Wrap(err, "insert knowledge")
}

func (r *KnowledgeRepository) Create(ctx context.Context, e *entities.KnowledgeEntry) error {
	return insertKnowledge(ctx, r.db, e)
}

func (r *KnowledgeRepository) Get(ctx context.Context, userID int, id int64) (*entities.KnowledgeEntry, error) {
	k, err := scanKnowledge(r.db.QueryRow(ctx, "SELECT "+knowledgeColumns+
		" FROM knowledge_base WHERE id = $1 AND user_id = $2", id, userID))
	return k, errors.Wrap(err, "get knowledge")
}

func knowledgeWhere(userID int, category, search string) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{userID}
	if category != "" {
		args = append(args, category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		clauses = append(clauses, fmt.Sprintf("(question ILIKE $%d OR answer ILIKE $%d)", len(args), len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *KnowledgeRepository) List(ctx context.Context, userID int, q entities.KnowledgeQuery) ([]entities.KnowledgeEntry, error) {
	where, args := knowledgeWhere(userID, q.Category, q.Query)
	args = append(args, q.Limit, q.Offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf("SELECT %s FROM knowledge_base WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		knowledgeColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list knowledge")
	}
	return collectKnowledge(rows)
}

// Candidates is the ILIKE prefilter for search, newest first.
func (r *KnowledgeRepository) Candidates(ctx context.Context, userID int, query, category string) ([]entities.KnowledgeEntry, error) {
	where, args := knowledgeWhere(userID, category, query)
	args = append(args, searchPrefilterLimit)
	rows, err := r.db.Query(ctx, fmt.Sprintf("SELECT %s FROM knowledge_base WHERE %s ORDER BY created_at DESC LIMIT $%d",
		knowledgeColumns, where, len(args)), args...)
	if err != nil {
		return nil, errors.Wrap(err, "search knowledge")
	}
	return collectKnowledge(rows)
}

// Update writes the changed fields; embedding is replaced only when reembed is set.
func (r *KnowledgeRepository) Update(ctx context.Context, userID int, id int64, in entities.KnowledgeInput, embedding []float64, reembed bool) (*entities.KnowledgeEntry, error) {
	var metadata any
	if len(in.Metadata) > 0 {
		metadata = in.Metadata
	}
	k, err := scanKnowledge(r.db.QueryRow(ctx, `
		UPDATE knowledge_base SET
			category = COALESCE($3, category),
			question = COALESCE($4, question),
			answer = COALESCE($5, answer),
			embedding = CASE WHEN $6 THEN $7 ELSE embedding END,
			metadata = COALESCE($8::jsonb, metadata),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+knowledgeColumns,
		id, userID, in.Category, in.Question, in.Answer, reembed, embedding, metadata))
	return k, errors.Wrap(err, "update knowledge")
}

// Delete removes the entry and its linked documents, returning their storage paths.
func (r *KnowledgeRepository) Delete(ctx context.Context, userID int, id int64) ([]string, bool, error) {
	var paths []string
	deleted := false
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			DELETE FROM knowledge_documents WHERE knowledge_id = $1 AND user_id = $2
			RETURNING COALESCE(storage_path, '')`, id, userID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return err
			}
			if p != "" {
				paths = append(paths, p)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, "DELETE FROM knowledge_base WHERE id = $1 AND user_id = $2", id, userID)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "delete knowledge")
	}
	return paths, deleted, nil
}

// CreateDocument stores an uploaded document and its chunk entries in one transaction.
// The document is linked to the first entry.
func (r *KnowledgeRepository) CreateDocument(ctx context.Context, doc *entities.KnowledgeDocument, chunks []*entities.KnowledgeEntry) error {
	doc.Metadata = jsonOrEmpty(doc.Metadata)
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO knowledge_documents (user_id, filename, mime_type, file_size, storage_path, text_content, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			doc.UserID, doc.Filename, doc.MimeType, doc.FileSize, doc.StoragePath, doc.TextContent, doc.Metadata,
		).Scan(&doc.ID, &doc.CreatedAt); err != nil {
			return err
		}

		for _, e := range chunks {
			if err := insertKnowledge(ctx, tx, e); err != nil {
				return err
			}
		}

		if len(chunks) > 0 {
			first := chunks[0].ID
			if _, err := tx.Exec(ctx, "UPDATE knowledge_documents SET knowledge_id = $1 WHERE id = $2", first, doc.ID); err != nil {
				return err
			}
			doc.KnowledgeID = &first
		}
		return nil
	})
	return errors.Wrap(err, "store document")
}
