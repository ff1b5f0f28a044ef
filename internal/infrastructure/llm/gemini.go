package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiClient struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewGeminiClient(apiKey, baseURL string, client *http.Client) *GeminiClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &GeminiClient{
		APIKey:  apiKey,
		BaseURL: normalizeBase(baseURL, geminiBaseURL),
		client:  client,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) Name() string { return entities.ProviderGemini }

// flattenTranscript renders the turns as "ROLE: content" lines in a single user part.
func flattenTranscript(turns []entities.ChatTurn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, strings.ToUpper(t.Role)+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	var payload geminiRequest
	payload.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: flattenTranscript(req.Messages)}}}}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	payload.GenerationConfig.Temperature = req.Temperature
	payload.GenerationConfig.MaxOutputTokens = req.MaxTokens

	url := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, model)
	headers := map[string]string{"x-goog-api-key": c.APIKey}

	var out geminiResponse
	if err := postJSON(ctx, c.client, c.Name(), url, headers, payload, &out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return &Response{Text: strings.TrimSpace(sb.String()), Model: model}, nil
}
