package entities

import (
	"encoding/json"
	"time"
)

const (
	KnowledgeSourceManual   = "manual"
	KnowledgeSourceDocument = "document"
)

type KnowledgeEntry struct {
	ID         int64           `json:"id"`
	UserID     int             `json:"userId"`
	Category   *string         `json:"category"`
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	Embedding  []float64       `json:"-"`
	Source     string          `json:"source"`
	SourceName *string         `json:"sourceName"`
	Metadata   json.RawMessage `json:"metadata"`
	Score      float64         `json:"score,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type KnowledgeDocument struct {
	ID          int64           `json:"id"`
	UserID      int             `json:"userId"`
	KnowledgeID *int64          `json:"knowledgeId"`
	Filename    string          `json:"filename"`
	MimeType    string          `json:"mimeType"`
	FileSize    int64           `json:"fileSize"`
	StoragePath string          `json:"-"`
	TextContent string          `json:"-"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type KnowledgeInput struct {
	Category   *string         `json:"category"`
	Question   *string         `json:"question"`
	Answer     *string         `json:"answer"`
	Source     *string         `json:"source"`
	SourceName *string         `json:"sourceName"`
	Metadata   json.RawMessage `json:"metadata"`
}

type KnowledgeQuery struct {
	Query    string
	Category string
	Limit    int
	Offset   int
	Semantic bool
}

// ContextSnippet is a ranked knowledge hit handed to the LLM prompt.
type ContextSnippet struct {
	ID       int64   `json:"id"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}
