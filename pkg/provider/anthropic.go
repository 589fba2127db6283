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
)

// AnthropicProvider implements Provider against the Anthropic Messages API.
type AnthropicProvider struct {
	cfg     *config.ProviderConfig
	http    *httpclient.Client
	limiter *limiter
	tokens  *tokenCounters
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicProvider creates an Anthropic provider from a validated configuration.
func NewAnthropicProvider(cfg *config.ProviderConfig) (*AnthropicProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("anthropic provider: %w", err)
	}
	opts := append([]httpclient.Option{
		httpclient.WithHeaderParser(httpclient.ParseAnthropicRateLimitHeaders),
		httpclient.WithRetryStrategy(httpclient.DefaultRetryStrategy),
	}, tlsOptions(cfg)...)
	return &AnthropicProvider{
		cfg:     cfg,
		http:    httpclient.New(opts...),
		limiter: newLimiter(cfg.MaxConcurrency, float64(cfg.RequestsPerMinute), float64(cfg.TokensPerMinute)),
		tokens:  newTokenCounters(),
	}, nil
}

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message, model string, temperature float64, format ResponseFormat, maxTokens int) (string, Usage, error) {
	if model == "" {
		model = p.cfg.Model
	}

	text, usage, err := p.complete(ctx, messages, model, temperature, format, maxTokens)
	if err != nil {
		return "", Usage{}, err
	}

	if format == ResponseFormatJSON && !json.Valid([]byte(text)) {
		strict := append(append([]Message{}, messages...), Message{
			Role:    RoleUser,
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

func (p *AnthropicProvider) complete(ctx context.Context, messages []Message, model string, temperature float64, format ResponseFormat, maxTokens int) (string, Usage, error) {
	estimated := p.tokens.estimate(messages, model)
	if err := p.limiter.wait(ctx, estimated); err != nil {
		return "", Usage{}, err
	}
	release, err := p.limiter.acquire(ctx)
	if err != nil {
		return "", Usage{}, err
	}
	defer release()

	var system string
	turns := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	if format == ResponseFormatJSON {
		if system != "" {
			system += "\n"
		}
		system += "Respond with valid JSON only, no surrounding prose."
	}

	req := anthropicRequest{
		Model:       model,
		Messages:    turns,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.http.Do(httpReq)
	if err != nil && resp == nil {
		return "", Usage{}, &Error{Provider: "anthropic", Model: model, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		permanent := resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500
		return "", Usage{}, &Error{Provider: "anthropic", Model: model, StatusCode: resp.StatusCode, Permanent: permanent, Err: fmt.Errorf("%s", string(raw))}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", Usage{}, &Error{Provider: "anthropic", Model: model, Permanent: true, Err: fmt.Errorf("%s", parsed.Error.Message)}
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", Usage{}, &Error{Provider: "anthropic", Model: model, Permanent: true, Err: fmt.Errorf("no text content returned")}
	}

	return text, Usage{
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
	}, nil
}

// CountTokens implements Provider. Anthropic has no public tokenizer, so this
// approximates with the same BPE encoding used for OpenAI models, matching
// the teacher's own GetEncodingForModel fallback for non-OpenAI families.
func (p *AnthropicProvider) CountTokens(text string, model string) int {
	if model == "" {
		model = p.cfg.Model
	}
	return p.tokens.count(text, model)
}

// DefaultModel implements Provider.
func (p *AnthropicProvider) DefaultModel() string {
	return p.cfg.Model
}

// ContextWindow implements Provider.
func (p *AnthropicProvider) ContextWindow(model string) int {
	return 200_000
}
