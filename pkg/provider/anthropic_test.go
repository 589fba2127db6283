package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsnhff/regender/pkg/config"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) (*AnthropicProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	cfg := &config.ProviderConfig{
		Type:    config.ProviderAnthropic,
		Model:   "claude-sonnet-4-20250514",
		APIKey:  "test-key",
		BaseURL: server.URL,
	}
	p, err := NewAnthropicProvider(cfg)
	require.NoError(t, err)
	return p, server
}

func TestAnthropicCompleteSplitsSystemMessage(t *testing.T) {
	var gotSystem string
	var gotHeader string
	p, server := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("x-api-key")
		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotSystem = req.System
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "hello"}},
			"usage":   map[string]int{"input_tokens": 10, "output_tokens": 2},
		})
	})
	defer server.Close()

	text, usage, err := p.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hi"},
	}, "", 0.7, ResponseFormatText, 100)

	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 10, usage.PromptTokens)
	assert.Equal(t, "be terse", gotSystem)
	assert.Equal(t, "test-key", gotHeader)
}

func TestAnthropicCompleteRetriesInvalidJSONOnce(t *testing.T) {
	attempt := 0
	p, server := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		attempt++
		text := "not json"
		if attempt > 1 {
			text = `{"ok":true}`
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
	})
	defer server.Close()

	text, _, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "give me json"}}, "", 0.7, ResponseFormatJSON, 100)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(text)))
	assert.Equal(t, 2, attempt)
}

func TestAnthropicCompletePermanentErrorOnAuthFailure(t *testing.T) {
	p, server := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "unauthorized"}})
	})
	defer server.Close()

	_, _, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", 0.7, ResponseFormatText, 100)
	require.Error(t, err)
	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.True(t, provErr.Permanent)
}

func TestAnthropicContextWindowIsFlat(t *testing.T) {
	p := &AnthropicProvider{cfg: &config.ProviderConfig{Model: "claude-sonnet-4-20250514"}}
	assert.Equal(t, 200_000, p.ContextWindow("claude-sonnet-4-20250514"))
	assert.Equal(t, 200_000, p.ContextWindow("claude-haiku"))
}
