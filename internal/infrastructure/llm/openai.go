package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const (
	openAIBaseURL         = "https://api.openai.com/v1"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// OpenAIClient talks to the Chat Completions and Embeddings APIs.
type OpenAIClient struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	client         *http.Client
}

func NewOpenAIClient(apiKey, baseURL string, client *http.Client) *OpenAIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAIClient{
		APIKey:         apiKey,
		BaseURL:        normalizeBase(baseURL, openAIBaseURL),
		EmbeddingModel: DefaultEmbeddingModel,
		client:         client,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Name() string { return entities.ProviderOpenAI }

func (c *OpenAIClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.APIKey}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, t := range req.Messages {
		messages = append(messages, openAIMessage{Role: t.Role, Content: t.Content})
	}

	var out openAIChatResponse
	payload := openAIChatRequest{Model: model, Messages: messages, MaxTokens: req.MaxTokens, Temperature: req.Temperature}
	if err := postJSON(ctx, c.client, c.Name(), c.BaseURL+"/chat/completions", c.headers(), payload, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}
	if out.Model == "" {
		out.Model = model
	}
	return &Response{Text: strings.TrimSpace(out.Choices[0].Message.Content), Model: out.Model}, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	var out embeddingResponse
	model := c.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	payload := embeddingRequest{Model: model, Input: text}
	if err := postJSON(ctx, c.client, c.Name(), c.BaseURL+"/embeddings", c.headers(), payload, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("openai returned no embedding")
	}
	return out.Data[0].Embedding, nil
}
