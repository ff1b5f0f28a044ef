// Package llm holds the chat-completion and embedding clients used to draft replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

var (
	ErrUnsupportedProvider = errors.New("provider is not supported")
	ErrMissingAPIKey       = errors.New("missing api key")
)

// Meta describes a provider the dashboard can pick.
type Meta struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DefaultModel string `json:"defaultModel"`
}

var Providers = []Meta{
	{ID: entities.ProviderOpenAI, Name: "OpenAI", DefaultModel: "gpt-4o-mini"},
	{ID: entities.ProviderClaude, Name: "Anthropic Claude", DefaultModel: "claude-3-haiku-20240307"},
	{ID: entities.ProviderGemini, Name: "Google Gemini", DefaultModel: "gemini-1.5-flash"},
}

func Lookup(id string) (Meta, bool) {
	for _, m := range Providers {
		if m.ID == id {
			return m, true
		}
	}
	return Meta{}, false
}

type Request struct {
	Model        string
	SystemPrompt string
	Messages     []entities.ChatTurn
	Temperature  float64
	MaxTokens    int
}

type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// Provider is one chat-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Options configures the concrete client; BaseURL is empty in production.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// New builds the client for provider.
func New(provider string, opts Options) (Provider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w for provider %s", ErrMissingAPIKey, provider)
	}
	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.Timeout == 0 {
		httpClient.Timeout = 60 * time.Second
	}

	switch provider {
	case entities.ProviderOpenAI:
		return NewOpenAIClient(opts.APIKey, opts.BaseURL, httpClient), nil
	case entities.ProviderClaude:
		return NewAnthropicClient(opts.APIKey, opts.BaseURL, httpClient), nil
	case entities.ProviderGemini:
		return NewGeminiClient(opts.APIKey, opts.BaseURL, httpClient), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
}

// BuildTurns prepends context turns to the prompt, dropping empty entries.
func BuildTurns(prompt string, context []entities.ChatTurn) []entities.ChatTurn {
	turns := make([]entities.ChatTurn, 0, len(context)+1)
	for _, t := range context {
		if t.Role == "" || t.Content == "" {
			continue
		}
		turns = append(turns, t)
	}
	if prompt != "" {
		turns = append(turns, entities.ChatTurn{Role: "user", Content: prompt})
	}
	return turns
}
