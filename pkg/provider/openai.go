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

// OpenAIProvider implements Provider against the OpenAI chat completions API.
type OpenAIProvider struct {
	cfg     *config.ProviderConfig
	http    *httpclient.Client
	limiter *limiter
	tokens  *tokenCounters
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string           `json:"model"`
	Messages       []openAIMessage  `json:"messages"`
	Temperature    float64          `json:"temperature"`
	MaxTokens      int              `json:"max_tokens,omitempty"`
	ResponseFormat *openAIRespFmt   `json:"response_format,omitempty"`
}

type openAIRespFmt struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIProvider creates an OpenAI provider from a validated configuration.
func NewOpenAIProvider(cfg *config.ProviderConfig) (*OpenAIProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("openai provider: %w", err)
	}
	opts := append([]httpclient.Option{
		httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
		httpclient.WithRetryStrategy(httpclient.DefaultRetryStrategy),
	}, tlsOptions(cfg)...)
	return &OpenAIProvider{
		cfg:     cfg,
		http:    httpclient.New(opts...),
		limiter: newLimiter(cfg.MaxConcurrency, float64(cfg.RequestsPerMinute), float64(cfg.TokensPerMinute)),
		tokens:  newTokenCounters(),
	}, nil
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, model string, temperature float64, format ResponseFormat, maxTokens int) (string, Usage, error) {
	if model == "" {
		model = p.cfg.Model
	}

	text, usage, err := p.complete(ctx, messages, model, temperature, format, maxTokens)
	if err != nil {
		return "", Usage{}, err
	}

	if format == ResponseFormatJSON && !json.Valid([]byte(text)) {
		strict := append(append([]Message{}, messages...), Message{
			Role:    RoleSystem,
			Content: "Your previous reply was not valid JSON. Reply with valid JSON only, no surrounding prose.",
		})
		text, usage, err = p.complete(ctx, strict, model, temperature, format, maxTokens)
		if err != nil {
			return "", Usage{}, err
		}
		if !json.Valid([]byte(text)) {
			return "", Usage{}, ErrInvalidJSON
		}
	}

	return text, usage, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, messages []Message, model string, temperature float64, format ResponseFormat, maxTokens int) (string, Usage, error) {
	estimated := p.tokens.estimate(messages, model)
	if err := p.limiter.wait(ctx, estimated); err != nil {
		return "", Usage{}, err
	}
	release, err := p.limiter.acquire(ctx)
	if err != nil {
		return "", Usage{}, err
	}
	defer release()

	req := openAIRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if format == ResponseFormatJSON {
		req.ResponseFormat = &openAIRespFmt{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.http.Do(httpReq)
	if err != nil && resp == nil {
		return "", Usage{}, &Error{Provider: "openai", Model: model, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		permanent := resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500
		return "", Usage{}, &Error{Provider: "openai", Model: model, StatusCode: resp.StatusCode, Permanent: permanent, Err: fmt.Errorf("%s", string(raw))}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("openai: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", Usage{}, &Error{Provider: "openai", Model: model, Permanent: true, Err: fmt.Errorf("%s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, &Error{Provider: "openai", Model: model, Permanent: true, Err: fmt.Errorf("no choices returned")}
	}

	return parsed.Choices[0].Message.Content, Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// CountTokens implements Provider using a real BPE encoding per model family.
func (p *OpenAIProvider) CountTokens(text string, model string) int {
	if model == "" {
		model = p.cfg.Model
	}
	return p.tokens.count(text, model)
}

// DefaultModel implements Provider.
func (p *OpenAIProvider) DefaultModel() string {
	return p.cfg.Model
}

// ContextWindow implements Provider.
func (p *OpenAIProvider) ContextWindow(model string) int {
	switch {
	case hasPrefix(model, "gpt-4o"), hasPrefix(model, "gpt-4-turbo"), hasPrefix(model, "o1"), hasPrefix(model, "o3"):
		return 128_000
	case hasPrefix(model, "gpt-4"):
		return 8_192
	case hasPrefix(model, "gpt-3.5-turbo"):
		return 16_385
	default:
		return 128_000
	}
}

func toOpenAIMessages(messages []Message) []openAIMessage {
	out := make([]openAIMessage, len(messages))
	for i, m := range messages {
		out[i] = openAIMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// tokenCounters caches a pkg/utils.TokenCounter per model.
type tokenCounters struct {
	mu       chan struct{}
	counters map[string]*utils.TokenCounter
}

func newTokenCounters() *tokenCounters {
	return &tokenCounters{mu: make(chan struct{}, 1), counters: make(map[string]*utils.TokenCounter)}
}

func (t *tokenCounters) get(model string) *utils.TokenCounter {
	t.mu <- struct{}{}
	defer func() { <-t.mu }()

	if c, ok := t.counters[model]; ok {
		return c
	}
	c, err := utils.NewTokenCounter(model)
	if err != nil {
		return nil
	}
	t.counters[model] = c
	return c
}

func (t *tokenCounters) count(text, model string) int {
	if c := t.get(model); c != nil {
		return c.Count(text)
	}
	return utils.EstimateTokens(text)
}

func (t *tokenCounters) estimate(messages []Message, model string) int {
	total := 0
	for _, m := range messages {
		total += t.count(m.Content, model)
	}
	return total
}
