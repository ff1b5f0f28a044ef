package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

func capture(t *testing.T, status int, reply string, seen *map[string]any, hdr *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m := map[string]any{"_path": r.URL.Path}
		_ = json.Unmarshal(body, &m)
		*seen = m
		*hdr = r.Header.Clone()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRejectsUnknownAndKeyless(t *testing.T) {
	_, err := New("mistral", Options{APIKey: "k"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = New(entities.ProviderOpenAI, Options{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	p, err := New(entities.ProviderGemini, Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, entities.ProviderGemini, p.Name())
}

func TestLookup(t *testing.T) {
	m, ok := Lookup(entities.ProviderClaude)
	require.True(t, ok)
	assert.Equal(t, "claude-3-haiku-20240307", m.DefaultModel)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestBuildTurnsSkipsEmpty(t *testing.T) {
	turns := BuildTurns("hello", []entities.ChatTurn{
		{Role: "assistant", Content: "hi"},
		{Role: "user", Content: ""},
	})
	require.Len(t, turns, 2)
	assert.Equal(t, entities.ChatTurn{Role: "user", Content: "hello"}, turns[1])
}

func TestOpenAIComplete(t *testing.T) {
	var seen map[string]any
	var hdr http.Header
	srv := capture(t, 200, `{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":" hi there "}}]}`, &seen, &hdr)

	c := NewOpenAIClient("sk-test", srv.URL, srv.Client())
	out, err := c.Complete(context.Background(), Request{
		SystemPrompt: "be brief",
		Messages:     []entities.ChatTurn{{Role: "user", Content: "hello"}},
		Temperature:  0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.Text)
	assert.Equal(t, "gpt-4o-mini", out.Model)
	assert.Equal(t, "/chat/completions", seen["_path"])
	assert.Equal(t, "Bearer sk-test", hdr.Get("Authorization"))

	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIEmbed(t *testing.T) {
	var seen map[string]any
	var hdr http.Header
	srv := capture(t, 200, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`, &seen, &hdr)

	c := NewOpenAIClient("sk-test", srv.URL, srv.Client())
	vec, err := c.Embed(context.Background(), "refund policy")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "/embeddings", seen["_path"])
	assert.Equal(t, DefaultEmbeddingModel, seen["model"])
}

func TestOpenAIErrorIsSanitized(t *testing.T) {
	var seen map[string]any
	var hdr http.Header
	srv := capture(t, 401, `{"error":"Incorrect API key provided: sk-live123"}`, &seen, &hdr)

	c := NewOpenAIClient("sk-live123", srv.URL, srv.Client())
	_, err := c.Complete(context.Background(), Request{Messages: []entities.ChatTurn{{Role: "user", Content: "x"}}})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.NotContains(t, err.Error(), "sk-live123")
}

func TestAnthropicComplete(t *testing.T) {
	var seen map[string]any
	var hdr http.Header
	srv := capture(t, 200, `{"model":"claude-3-haiku-20240307","content":[{"type":"text","text":"salam"}]}`, &seen, &hdr)

	c := NewAnthropicClient("ak", srv.URL, srv.Client())
	out, err := c.Complete(context.Background(), Request{
		SystemPrompt: "sys",
		Messages: []entities.ChatTurn{
			{Role: "system", Content: "extra"},
			{Role: "user", Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "salam", out.Text)
	assert.Equal(t, "/messages", seen["_path"])
	assert.Equal(t, "ak", hdr.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, hdr.Get("anthropic-version"))
	assert.EqualValues(t, anthropicMaxTokens, seen["max_tokens"])
	assert.Equal(t, "sys\nextra", seen["system"])
	assert.Len(t, seen["messages"], 1)
}

func TestGeminiComplete(t *testing.T) {
	var seen map[string]any
	var hdr http.Header
	srv := capture(t, 200, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`, &seen, &hdr)

	c := NewGeminiClient("gk", srv.URL, srv.Client())
	out, err := c.Complete(context.Background(), Request{
		SystemPrompt: "sys",
		Messages: []entities.ChatTurn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, "gemini-1.5-flash", out.Model)
	assert.True(t, strings.HasSuffix(seen["_path"].(string), "/models/gemini-1.5-flash:generateContent"))
	assert.Equal(t, "gk", hdr.Get("x-goog-api-key"))

	contents := seen["contents"].([]any)
	part := contents[0].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "USER: hi\nASSISTANT: hello", part["text"])
	assert.NotNil(t, seen["systemInstruction"])
}

func TestRetryingProviderWrapsName(t *testing.T) {
	p := WithRetries(NewGeminiClient("k", "", nil), DefaultRetry)
	assert.Equal(t, entities.ProviderGemini, p.Name())
}
