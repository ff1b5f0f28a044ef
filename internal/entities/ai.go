package entities

import (
	"encoding/json"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

type AISettings struct {
	ID           int64           `json:"id"`
	UserID       int             `json:"userId"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	Temperature  float64         `json:"temperature"`
	MaxTokens    *int            `json:"maxTokens"`
	SystemPrompt *string         `json:"systemPrompt"`
	Settings     json.RawMessage `json:"settings"`
}

// SettingsMap decodes settings_json, tolerating empty payloads.
func (s *AISettings) SettingsMap() map[string]any {
	out := map[string]any{}
	if len(s.Settings) > 0 {
		_ = json.Unmarshal(s.Settings, &out)
	}
	return out
}

func (s *AISettings) APIKey() string {
	if v, ok := s.SettingsMap()["apiKey"].(string); ok {
		return v
	}
	return ""
}

func (s *AISettings) IsDefault() bool {
	v, _ := s.SettingsMap()["is_default"].(bool)
	return v
}

// ChatTurn is one prior message handed to a provider as context.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AIProvider struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	APIKey          string          `json:"apiKey,omitempty"`
	Endpoint        string          `json:"endpoint"`
	Models          []string        `json:"models"`
	CostPerThousand float64         `json:"costPerThousand"`
	Settings        json.RawMessage `json:"settings"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// MaskedKey hides all but the last four characters of the stored key.
func (p AIProvider) MaskedKey() string {
	if len(p.APIKey) <= 4 {
		return "****"
	}
	return "****" + p.APIKey[len(p.APIKey)-4:]
}

type Plan struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Price            float64         `json:"price"`
	Currency         string          `json:"currency"`
	MessageLimit     int             `json:"messageLimit"`
	WhatsAppAccounts int             `json:"whatsappAccounts"`
	Features         json.RawMessage `json:"features"`
	Subscribers      int             `json:"subscribers"`
}

// PlanPatch carries the admin's partial plan edit; nil fields are kept.
type PlanPatch struct {
	Name             *string         `json:"name"`
	Price            *float64        `json:"price"`
	MessageLimit     *int            `json:"messageLimit"`
	WhatsAppAccounts *int            `json:"whatsappAccounts"`
	Features         json.RawMessage `json:"features"`
}

// QuotaStatus is a tenant's outbound usage for the current month. Limit 0
// means unlimited and Remaining is then -1.
type QuotaStatus struct {
	Plan      string `json:"plan"`
	Limit     int    `json:"limit"`
	Sent      int    `json:"sent"`
	Remaining int    `json:"remaining"`
	Percent   int    `json:"percent"`
}
