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

func newTestOllama(t *testing.T, handler http.HandlerFunc) (*OllamaProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	cfg := &config.ProviderConfig{
		Type:    config.ProviderOllama,
		Model:   "llama3.2",
		BaseURL: server.URL,
	}
	p, err := NewOllamaProvider(cfg)
	require.NoError(t, err)
	return p, server
}

func TestOllamaCompleteReturnsUsage(t *testing.T) {
	var gotFormat string
	p, server := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotFormat = req.Format
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": "hello"},
			"prompt_eval_count": 7,
			"eval_count":        2,
		})
	})
	defer server.Close()

	text, usage, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", 0.7, ResponseFormatText, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 7, usage.PromptTokens)
	assert.Equal(t, 2, usage.CompletionTokens)
	assert.Empty(t, gotFormat)
}

func TestOllamaCompleteSetsJSONFormat(t *testing.T) {
	var gotFormat string
	p, server := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotFormat = req.Format
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": `{"ok":true}`},
		})
	})
	defer server.Close()

	text, _, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", 0.7, ResponseFormatJSON, 0)
	require.NoError(t, err)
	assert.Equal(t, "json", gotFormat)
	assert.True(t, json.Valid([]byte(text)))
}

func TestOllamaCompleteClientErrorIsPermanent(t *testing.T) {
	p, server := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	})
	defer server.Close()

	_, _, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", 0.7, ResponseFormatText, 0)
	require.Error(t, err)
	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.True(t, provErr.Permanent)
}

func TestOllamaCountTokensUsesHeuristic(t *testing.T) {
	p := &OllamaProvider{cfg: &config.ProviderConfig{Model: "llama3.2"}}
	assert.Equal(t, len("abcd")/4, p.CountTokens("abcd", "llama3.2"))
}
