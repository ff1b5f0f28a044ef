package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com/v1"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 512
)

type AnthropicClient struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewAnthropicClient(apiKey, baseURL string, client *http.Client) *AnthropicClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &AnthropicClient{
		APIKey:  apiKey,
		BaseURL: normalizeBase(baseURL, anthropicBaseURL),
		client:  client,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *AnthropicClient) Name() string { return entities.ProviderClaude }

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "claude-3-haiku-20240307"
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	// system turns ride in the top-level field
	system := req.SystemPrompt
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, t := range req.Messages {
		if t.Role == "system" {
			system = strings.TrimSpace(system + "\n" + t.Content)
			continue
		}
		messages = append(messages, anthropicMessage{Role: t.Role, Content: t.Content})
	}

	headers := map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": anthropicVersion,
	}
	payload := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      system,
		Messages:    messages,
	}

	var out anthropicResponse
	if err := postJSON(ctx, c.client, c.Name(), c.BaseURL+"/messages", headers, payload, &out); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, errors.New("claude returned no text")
	}
	if out.Model == "" {
		out.Model = model
	}
	return &Response{Text: strings.TrimSpace(sb.String()), Model: out.Model}, nil
}
