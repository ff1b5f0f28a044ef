package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure/llm"
)

const (
	defaultTestPrompt  = "Say hello from the WhatsApp AI service."
	defaultTemperature = 0.7
	replyHistory       = 10
)

type AISettingsStore interface {
	Get(ctx context.Context, userID int, provider string) (*entities.AISettings, error)
	List(ctx context.Context, userID int) ([]entities.AISettings, error)
	GetDefault(ctx context.Context, userID int) (*entities.AISettings, error)
	Upsert(ctx context.Context, s *entities.AISettings) (*entities.AISettings, error)
	SwitchDefault(ctx context.Context, userID int, provider string) (*entities.AISettings, error)
}

type AICallCounter interface {
	IncrementAICalls(ctx context.Context, userID int) error
}

type ContextFinder interface {
	FindRelevantContext(ctx context.Context, userID int, question string, topK int) ([]entities.ContextSnippet, error)
}

// ProviderFactory builds a provider client; llm.New in production.
type ProviderFactory func(provider string, opts llm.Options) (llm.Provider, error)

type SettingsInput struct {
	Provider     string         `json:"provider" binding:"required"`
	Model        string         `json:"model" binding:"required"`
	Temperature  *float64       `json:"temperature"`
	MaxTokens    *int           `json:"maxTokens"`
	SystemPrompt string         `json:"systemPrompt"`
	Settings     map[string]any `json:"settings"`
	APIKey       string         `json:"apiKey"`
}

type TestInput struct {
	Provider     string              `json:"provider"`
	Prompt       string              `json:"prompt"`
	Model        string              `json:"model"`
	Temperature  *float64            `json:"temperature"`
	MaxTokens    *int                `json:"maxTokens"`
	SystemPrompt string              `json:"systemPrompt"`
	Settings     map[string]any      `json:"settings"`
	Context      []entities.ChatTurn `json:"context"`
}

type TestResult struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Response string `json:"response"`
}

type AIService struct {
	settings        AISettingsStore
	messages        MessageStore
	knowledge       ContextFinder
	usage           AICallCounter
	envKeys         func(provider string) string
	defaultProvider string
	factory         ProviderFactory
	retry           llm.RetryPolicy
	testRetry       llm.RetryPolicy
}

func NewAIService(settings AISettingsStore, messages MessageStore, knowledge ContextFinder, usage AICallCounter,
	envKeys func(provider string) string, defaultProvider string) *AIService {
	if defaultProvider == "" {
		defaultProvider = entities.ProviderOpenAI
	}
	return &AIService{
		settings:        settings,
		messages:        messages,
		knowledge:       knowledge,
		usage:           usage,
		envKeys:         envKeys,
		defaultProvider: defaultProvider,
		factory:         llm.New,
		retry:           llm.DefaultRetry,
		testRetry:       llm.TestRetry,
	}
}

func (s *AIService) Providers() []llm.Meta { return llm.Providers }

// Settings returns one provider's row when provider is set, else every row.
func (s *AIService) Settings(ctx context.Context, userID int, provider string) (any, error) {
	if provider != "" {
		return s.settings.Get(ctx, userID, provider)
	}
	rows, err := s.settings.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []entities.AISettings{}
	}
	return rows, nil
}

func (s *AIService) UpdateSettings(ctx context.Context, userID int, in SettingsInput) (*entities.AISettings, error) {
	v := &ValidationError{}
	if _, ok := llm.Lookup(in.Provider); !ok {
		v.Add("provider", "provider must be one of openai, claude, gemini")
	}
	if strings.TrimSpace(in.Model) == "" {
		v.Add("model", "model is required")
	}
	if in.Temperature != nil && (*in.Temperature < 0 || *in.Temperature > 2) {
		v.Add("temperature", "temperature must be between 0 and 2")
	}
	if in.MaxTokens != nil && *in.MaxTokens < 1 {
		v.Add("maxTokens", "maxTokens must be at least 1")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	settings := map[string]any{}
	for k, val := range in.Settings {
		settings[k] = val
	}
	if in.APIKey != "" {
		settings["apiKey"] = in.APIKey
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}

	temperature := defaultTemperature
	if in.Temperature != nil {
		temperature = *in.Temperature
	}
	return s.settings.Upsert(ctx, &entities.AISettings{
		UserID:       userID,
		Provider:     in.Provider,
		Model:        strings.TrimSpace(in.Model),
		Temperature:  temperature,
		MaxTokens:    in.MaxTokens,
		SystemPrompt: optional(in.SystemPrompt),
		Settings:     raw,
	})
}

// Switch marks provider as the tenant's default.
func (s *AIService) Switch(ctx context.Context, userID int, provider string) (*entities.AISettings, error) {
	if _, ok := llm.Lookup(provider); !ok {
		return nil, ErrUnsupportedProvider
	}
	row, err := s.settings.SwitchDefault(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrProviderSettingsMissing
	}
	return row, nil
}

// resolveKey prefers the tenant's own key over the process-wide one.
func (s *AIService) resolveKey(provider string, settings map[string]any) string {
	if key, ok := settings["apiKey"].(string); ok && key != "" {
		return key
	}
	if s.envKeys == nil {
		return ""
	}
	return s.envKeys(provider)
}

type callSpec struct {
	provider     string
	model        string
	temperature  float64
	maxTokens    int
	systemPrompt string
	settings     map[string]any
}

// merge layers stored settings over provider defaults.
func mergeSpec(provider string, stored *entities.AISettings) callSpec {
	spec := callSpec{provider: provider, temperature: defaultTemperature, settings: map[string]any{}}
	if meta, ok := llm.Lookup(provider); ok {
		spec.model = meta.DefaultModel
	}
	if stored == nil {
		return spec
	}
	if stored.Model != "" {
		spec.model = stored.Model
	}
	spec.temperature = stored.Temperature
	if stored.MaxTokens != nil {
		spec.maxTokens = *stored.MaxTokens
	}
	if stored.SystemPrompt != nil {
		spec.systemPrompt = *stored.SystemPrompt
	}
	spec.settings = stored.SettingsMap()
	return spec
}

func (s *AIService) complete(ctx context.Context, spec callSpec, policy llm.RetryPolicy, turns []entities.ChatTurn) (*llm.Response, error) {
	if _, ok := llm.Lookup(spec.provider); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, spec.provider)
	}
	baseURL, _ := spec.settings["baseUrl"].(string)
	client, err := s.factory(spec.provider, llm.Options{APIKey: s.resolveKey(spec.provider, spec.settings), BaseURL: baseURL})
	if err != nil {
		return nil, err
	}
	return llm.WithRetries(client, policy).Complete(ctx, llm.Request{
		Model:        spec.model,
		SystemPrompt: spec.systemPrompt,
		Messages:     turns,
		Temperature:  spec.temperature,
		MaxTokens:    spec.maxTokens,
	})
}

// Test runs one completion with request overrides on top of the stored settings.
func (s *AIService) Test(ctx context.Context, userID int, in TestInput) (*TestResult, error) {
	provider := in.Provider
	if provider == "" {
		provider = s.defaultProvider
	}
	prompt := in.Prompt
	if prompt == "" {
		prompt = defaultTestPrompt
	}

	stored, err := s.settings.Get(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	spec := mergeSpec(provider, stored)
	if in.Model != "" {
		spec.model = in.Model
	}
	if in.Temperature != nil {
		spec.temperature = *in.Temperature
	}
	if in.MaxTokens != nil {
		spec.maxTokens = *in.MaxTokens
	}
	if in.SystemPrompt != "" {
		spec.systemPrompt = in.SystemPrompt
	}
	for k, v := range in.Settings {
		spec.settings[k] = v
	}

	resp, err := s.complete(ctx, spec, s.testRetry, llm.BuildTurns(prompt, in.Context))
	if err != nil {
		return nil, err
	}
	s.countCall(ctx, userID)

	model := resp.Model
	if model == "" {
		model = spec.model
	}
	return &TestResult{Provider: provider, Model: model, Response: resp.Text}, nil
}

func (s *AIService) countCall(ctx context.Context, userID int) {
	if s.usage == nil {
		return
	}
	if err := s.usage.IncrementAICalls(ctx, userID); err != nil {
		zap.L().Warn("ai: usage counter failed", zap.Int("user_id", userID), zap.Error(err))
	}
}

func knowledgePrompt(base string, snippets []entities.ContextSnippet) string {
	if len(snippets) == 0 {
		return base
	}
	var sb strings.Builder
	if base != "" {
		sb.WriteString(base)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Answer using the following business knowledge when relevant:\n")
	for _, sn := range snippets {
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n", sn.Question, sn.Answer)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// history maps stored messages onto chat turns, oldest first. The newest
// message is the one being answered and is left out.
func (s *AIService) history(ctx context.Context, conversationID int64) []entities.ChatTurn {
	if s.messages == nil || conversationID == 0 {
		return nil
	}
	msgs, err := s.messages.ListByConversation(ctx, conversationID, replyHistory+1, 0)
	if err != nil {
		zap.L().Warn("ai: load history failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		return nil
	}
	if len(msgs) > 0 {
		msgs = msgs[1:]
	}
	turns := make([]entities.ChatTurn, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		switch m.SenderType {
		case entities.SenderContact:
			turns = append(turns, entities.ChatTurn{Role: "user", Content: m.Text()})
		case entities.SenderBot, entities.SenderUser:
			turns = append(turns, entities.ChatTurn{Role: "assistant", Content: m.Text()})
		}
	}
	return turns
}

// DraftReply answers a customer message with the tenant's default provider.
// ok is false when the tenant has not picked a default provider.
func (s *AIService) DraftReply(ctx context.Context, userID int, conversationID int64, text string) (string, bool, error) {
	stored, err := s.settings.GetDefault(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if stored == nil {
		return "", false, nil
	}
	spec := mergeSpec(stored.Provider, stored)

	if s.knowledge != nil {
		snippets, err := s.knowledge.FindRelevantContext(ctx, userID, text, defaultContext)
		if err != nil {
			zap.L().Warn("ai: knowledge lookup failed", zap.Int("user_id", userID), zap.Error(err))
		}
		spec.systemPrompt = knowledgePrompt(spec.systemPrompt, snippets)
	}

	resp, err := s.complete(ctx, spec, s.retry, llm.BuildTurns(text, s.history(ctx, conversationID)))
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return "", false, nil
		}
		return "", false, err
	}
	s.countCall(ctx, userID)
	return resp.Text, resp.Text != "", nil
}
