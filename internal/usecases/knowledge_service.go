package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
	"github.com/loorksy/ERPwhatsapp/internal/interfaces"
)

const (
	chunkSize      = 1500
	defaultContext = 5
)

type KnowledgeStore interface {
	Create(ctx context.Context, e *entities.KnowledgeEntry) error
	Get(ctx context.Context, userID int, id int64) (*entities.KnowledgeEntry, error)
	List(ctx context.Context, userID int, q entities.KnowledgeQuery) ([]entities.KnowledgeEntry, error)
	Candidates(ctx context.Context, userID int, query, category string) ([]entities.KnowledgeEntry, error)
	Update(ctx context.Context, userID int, id int64, in entities.KnowledgeInput, embedding []float64, reembed bool) (*entities.KnowledgeEntry, error)
	Delete(ctx context.Context, userID int, id int64) ([]string, bool, error)
	CreateDocument(ctx context.Context, doc *entities.KnowledgeDocument, chunks []*entities.KnowledgeEntry) error
}

type UploadInput struct {
	Filename string
	MimeType string
	Data     []byte
	Category string
}

type UploadResult struct {
	Document *entities.KnowledgeDocument `json:"document"`
	Entries  []*entities.KnowledgeEntry  `json:"entries"`
}

type KnowledgeService struct {
	store     KnowledgeStore
	embedder  interfaces.Embedder
	uploadDir string
	maxUpload int64
	queries   *cache.Cache
	now       func() time.Time
}

// NewKnowledgeService accepts a nil embedder; entries are then stored without
// vectors and search keeps the text prefilter order.
func NewKnowledgeService(store KnowledgeStore, embedder interfaces.Embedder, uploadDir string, maxUpload int64) *KnowledgeService {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		zap.L().Warn("knowledge: could not create upload directory", zap.String("dir", uploadDir), zap.Error(err))
	}
	return &KnowledgeService{
		store:     store,
		embedder:  embedder,
		uploadDir: uploadDir,
		maxUpload: maxUpload,
		queries:   cache.New(10*time.Minute, 20*time.Minute),
		now:       time.Now,
	}
}

// CosineSimilarity is 0 for empty, mismatched or zero vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// embed returns nil when no embedder is configured or the provider fails.
func (s *KnowledgeService) embed(ctx context.Context, text string) []float64 {
	if s.embedder == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		zap.L().Warn("knowledge: embedding failed", zap.Error(err))
		return nil
	}
	return vec
}

func (s *KnowledgeService) queryEmbedding(ctx context.Context, userID int, query string) []float64 {
	key := fmt.Sprintf("%d:%s", userID, query)
	if v, ok := s.queries.Get(key); ok {
		return v.([]float64)
	}
	vec := s.embed(ctx, query)
	if vec != nil {
		s.queries.SetDefault(key, vec)
	}
	return vec
}

func (s *KnowledgeService) List(ctx context.Context, userID int, q entities.KnowledgeQuery) ([]entities.KnowledgeEntry, error) {
	q.Limit = clamp(q.Limit, 50, 1, 200)
	if q.Offset < 0 {
		q.Offset = 0
	}
	rows, err := s.store.List(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []entities.KnowledgeEntry{}
	}
	return rows, nil
}

func (s *KnowledgeService) Create(ctx context.Context, userID int, in entities.KnowledgeInput) (*entities.KnowledgeEntry, error) {
	v := &ValidationError{}
	if in.Question == nil || strings.TrimSpace(*in.Question) == "" {
		v.Add("question", "question is required")
	}
	if in.Answer == nil || strings.TrimSpace(*in.Answer) == "" {
		v.Add("answer", "answer is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	e := &entities.KnowledgeEntry{
		UserID:     userID,
		Category:   in.Category,
		Question:   strings.TrimSpace(*in.Question),
		Answer:     strings.TrimSpace(*in.Answer),
		SourceName: in.SourceName,
		Metadata:   in.Metadata,
	}
	if in.Source != nil {
		e.Source = *in.Source
	}
	e.Embedding = s.embed(ctx, e.Question+"\n"+e.Answer)
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *KnowledgeService) Get(ctx context.Context, userID int, id int64) (*entities.KnowledgeEntry, error) {
	e, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	return e, nil
}

// Update re-embeds only when the question or answer text changed.
func (s *KnowledgeService) Update(ctx context.Context, userID int, id int64, in entities.KnowledgeInput) (*entities.KnowledgeEntry, error) {
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	question, answer := existing.Question, existing.Answer
	changed := false
	if in.Question != nil && *in.Question != "" && *in.Question != existing.Question {
		question, changed = *in.Question, true
	}
	if in.Answer != nil && *in.Answer != "" && *in.Answer != existing.Answer {
		answer, changed = *in.Answer, true
	}

	var embedding []float64
	if changed {
		embedding = s.embed(ctx, question+"\n"+answer)
	}
	e, err := s.store.Update(ctx, userID, id, in, embedding, changed)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	return e, nil
}

// Delete removes the entry and the files of documents linked to it.
func (s *KnowledgeService) Delete(ctx context.Context, userID int, id int64) error {
	paths, deleted, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("knowledge: remove document file failed", zap.String("path", p), zap.Error(err))
		}
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Search prefilters by text and ranks by cosine similarity when semantic is set.
func (s *KnowledgeService) Search(ctx context.Context, userID int, q entities.KnowledgeQuery) ([]entities.KnowledgeEntry, error) {
	limit := clamp(q.Limit, 20, 1, 50)
	query := strings.TrimSpace(q.Query)

	rows, err := s.store.Candidates(ctx, userID, query, q.Category)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []entities.KnowledgeEntry{}
	}

	if q.Semantic && query != "" {
		if qvec := s.queryEmbedding(ctx, userID, query); qvec != nil {
			for i := range rows {
				rows[i].Score = CosineSimilarity(qvec, rows[i].Embedding)
			}
			sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
		}
	}

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// FindRelevantContext returns the top knowledge hits for a customer question.
func (s *KnowledgeService) FindRelevantContext(ctx context.Context, userID int, question string, topK int) ([]entities.ContextSnippet, error) {
	if topK <= 0 {
		topK = defaultContext
	}
	rows, err := s.Search(ctx, userID, entities.KnowledgeQuery{Query: question, Limit: topK, Semantic: true})
	if err != nil {
		return nil, err
	}
	out := make([]entities.ContextSnippet, 0, len(rows))
	for _, r := range rows {
		out = append(out, entities.ContextSnippet{ID: r.ID, Question: r.Question, Answer: r.Answer, Score: r.Score})
	}
	return out, nil
}

// Upload stores the file, extracts its text and saves one entry per chunk.
func (s *KnowledgeService) Upload(ctx context.Context, userID int, in UploadInput) (*UploadResult, error) {
	v := &ValidationError{}
	if len(in.Data) == 0 {
		v.Add("file", "file is required")
	} else if s.maxUpload > 0 && int64(len(in.Data)) > s.maxUpload {
		v.Add("file", fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
	}
	kind := infrastructure.DocumentKind(in.Filename, in.MimeType)
	if kind == "" {
		v.Add("file", "only pdf, docx and txt files are supported")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	text, err := infrastructure.ExtractText(in.Filename, in.MimeType, in.Data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		v.Add("file", "no text could be extracted from the file")
		return nil, v.Err()
	}

	storagePath := filepath.Join(s.uploadDir, uuid.NewString()+"."+kind)
	if err := os.WriteFile(storagePath, in.Data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	now := s.now()
	metadata, _ := json.Marshal(map[string]any{"uploadedAt": now.UTC().Format(time.RFC3339)})
	doc := &entities.KnowledgeDocument{
		UserID:      userID,
		Filename:    in.Filename,
		MimeType:    in.MimeType,
		FileSize:    int64(len(in.Data)),
		StoragePath: storagePath,
		TextContent: text,
		Metadata:    metadata,
	}

	category := optional(strings.TrimSpace(in.Category))
	suffix := now.UnixMilli()
	chunks := infrastructure.ChunkText(text, chunkSize)
	entries := make([]*entities.KnowledgeEntry, 0, len(chunks))
	for i, chunk := range chunks {
		question := fmt.Sprintf("%s - chunk %d (%d)", in.Filename, i+1, suffix)
		meta, _ := json.Marshal(map[string]any{"chunk": i + 1, "filename": in.Filename})
		entries = append(entries, &entities.KnowledgeEntry{
			UserID:     userID,
			Category:   category,
			Question:   question,
			Answer:     chunk,
			Embedding:  s.embed(ctx, question+"\n"+chunk),
			Source:     entities.KnowledgeSourceDocument,
			SourceName: optional(in.Filename),
			Metadata:   meta,
		})
	}

	if err := s.store.CreateDocument(ctx, doc, entries); err != nil {
		if rmErr := os.Remove(storagePath); rmErr != nil {
			zap.L().Warn("knowledge: cleanup after failed upload", zap.String("path", storagePath), zap.Error(rmErr))
		}
		return nil, err
	}
	return &UploadResult{Document: doc, Entries: entries}, nil
}
