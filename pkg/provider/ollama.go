package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jsnhff/regender/pkg/config"
	"github.com/jsnhff/regender/pkg/httpclient"
	"github.com/jsnhff/regender/pkg/utils"
)

// OllamaProvider implements Provider against a local Ollama server. Unlike
// the hosted providers it has no API key and no published rate-limit
// headers, so its retry strategy is the httpclient default with no header
// parser wired in.
type OllamaProvider struct {
	cfg     *config.ProviderConfig
	http    *httpclient.Client
	limiter *limiter
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// NewOllamaProvider creates an Ollama provider from a validated configuration.
func NewOllamaProvider(cfg *config.ProviderConfig) (*OllamaProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ollama provider: %w", err)
	}
	opts := append([]httpclient.Option{
		httpclient.WithRetryStrategy(httpclient.DefaultRetryStrategy),
	}, tlsOptions(cfg)...)
	return &OllamaProvider{
		cfg:     cfg,
		http:    httpclient.New(opts...),
		limiter: newLimiter(cfg.MaxConcurrency, float64(cfg.RequestsPerMinute), 0),
	}, nil
}

// Complete implements Provider.
func (p *OllamaProvider) Complete(ctx context.Context, messages []Message, model string, temperature float64, format ResponseFormat, maxTokens int) (string, Usage, error) {
	if model == "" {
		model = p.cfg.Model
	}

	text, usage, err := p.complete(ctx, messages, model, temperature, format)
	if err != nil {
		return "", Usage{}, err
	}

	if format == ResponseFormatJSON && !json.Valid([]byte(text)) {
		strict := append(append([]Message{}, messages...), Message{
			Role:    RoleSystem,
			Content: "Your previous reply was not valid JSON. Reply with valid JSON only, no surrounding prose.",
		})
		text, usage, err = p.complete(ctx, strict, model, temperature, format)
		if err != nil {
			return "", Usage{}, err
		}
		if !json.Valid([]byte(text)) {
			return "", Usage{}, ErrInvalidJSON
		}
	}

	return text, usage, nil
}

func (p *OllamaProvider) complete(ctx context.Context, messages []Message, model string, temperature float64, format ResponseFormat) (string, Usage, error) {
	if err := p.limiter.wait(ctx, 0); err != nil {
		return "", Usage{}, err
	}
	release, err := p.limiter.acquire(ctx)
	if err != nil {
		return "", Usage{}, err
	}
	defer release()

	req := ollamaRequest{
		Model:    model,
		Messages: toOllamaMessages(messages),
		Options:  ollamaOptions{Temperature: temperature},
	}
	if format == ResponseFormatJSON {
		req.Format = "json"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(httpReq)
	if err != nil && resp == nil {
		return "", Usage{}, &Error{Provider: "ollama", Model: model, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("ollama: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		permanent := resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500
		return "", Usage{}, &Error{Provider: "ollama", Model: model, StatusCode: resp.StatusCode, Permanent: permanent, Err: fmt.Errorf("%s", string(raw))}
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("ollama: unmarshal response: %w", err)
	}
	if parsed.Error != "" {
		return "", Usage{}, &Error{Provider: "ollama", Model: model, Permanent: true, Err: fmt.Errorf("%s", parsed.Error)}
	}

	return parsed.Message.Content, Usage{
		PromptTokens:     parsed.PromptEvalCount,
		CompletionTokens: parsed.EvalCount,
	}, nil
}

// CountTokens implements Provider using the char/4 heuristic; local models
// vary too widely in tokenizer to justify a BPE cache keyed by name.
func (p *OllamaProvider) CountTokens(text string, model string) int {
	return utils.EstimateTokens(text)
}

// DefaultModel implements Provider.
func (p *OllamaProvider) DefaultModel() string {
	return p.cfg.Model
}

// ContextWindow implements Provider. Ollama exposes this per-model via
// /api/show; without a live server to query at construction time, a
// conservative default is used.
func (p *OllamaProvider) ContextWindow(model string) int {
	return 8_192
}

func toOllamaMessages(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, len(messages))
	for i, m := range messages {
		out[i] = ollamaMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
