package config

import (
	"fmt"
	"os"
)

// ProviderType identifies a concrete LLM back-end.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// ProviderConfig configures a single provider instance.
type ProviderConfig struct {
	Type    ProviderType
	Model   string
	APIKey  string
	BaseURL string

	Temperature float64
	MaxTokens   int

	// RequestsPerMinute and TokensPerMinute bound the provider's token-
	// bucket rate limiter (§4.1). Zero means "unbounded". OllamaProvider
	// applies only RequestsPerMinute.
	RequestsPerMinute int
	TokensPerMinute   int

	// MaxConcurrency bounds the provider's in-flight request semaphore.
	MaxConcurrency int

	// CACertificate, if set, is a path to a PEM file trusted in addition to
	// the system root CAs — for providers behind a corporate TLS-inspecting
	// proxy or a self-hosted Ollama with a private cert.
	CACertificate string
	// InsecureSkipVerify disables TLS certificate verification. Dev/test
	// only; never set from a checked-in default.
	InsecureSkipVerify bool
}

// SetDefaults fills in provider-specific defaults for any zero-valued
// fields, mirroring the teacher's LLMConfig.SetDefaults.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = detectProviderFromEnv()
	}
	if c.Model == "" {
		switch c.Type {
		case ProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case ProviderOpenAI:
			c.Model = "gpt-4o"
		case ProviderOllama:
			c.Model = "llama3.2"
		}
	}
	if c.APIKey == "" {
		c.APIKey = getAPIKeyFromEnv(c.Type)
	}
	if c.BaseURL == "" {
		switch c.Type {
		case ProviderOpenAI:
			c.BaseURL = "https://api.openai.com/v1"
		case ProviderAnthropic:
			c.BaseURL = "https://api.anthropic.com"
		case ProviderOllama:
			if h := os.Getenv("OLLAMA_HOST"); h != "" {
				c.BaseURL = h
			} else {
				c.BaseURL = "http://localhost:11434"
			}
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.MaxConcurrency == 0 {
		switch c.Type {
		case ProviderOllama:
			c.MaxConcurrency = 2
		default:
			c.MaxConcurrency = 5
		}
	}
	if c.CACertificate == "" {
		c.CACertificate = os.Getenv("REGENDER_CA_CERTIFICATE")
	}
	if !c.InsecureSkipVerify {
		c.InsecureSkipVerify = os.Getenv("REGENDER_INSECURE_SKIP_VERIFY") == "true"
	}
}

// Validate checks that the provider configuration is usable.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("invalid provider %q (valid: openai, anthropic, ollama)", c.Type)
	}
	if c.Type != ProviderOllama && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %q", c.Type)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

func detectProviderFromEnv() ProviderType {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return ProviderAnthropic
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	if os.Getenv("OLLAMA_HOST") != "" {
		return ProviderOllama
	}
	return ProviderOpenAI
}

func getAPIKeyFromEnv(p ProviderType) string {
	switch p {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderOllama:
		return ""
	default:
		return ""
	}
}

// FromEnv builds a ProviderConfig for the given provider type, reading
// DEFAULT_PROVIDER and <PROVIDER>_MODEL overrides per §6. A `.env` file in
// the working directory (`.env.local` takes precedence over `.env`) is
// loaded first, per §6/§10.3, so its contents are visible to every read
// below; real process environment variables are never overwritten.
func FromEnv() (*ProviderConfig, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("config: load env files: %w", err)
	}

	c := &ProviderConfig{Type: ProviderType(os.Getenv("DEFAULT_PROVIDER"))}
	c.SetDefaults()
	switch c.Type {
	case ProviderOpenAI:
		if m := os.Getenv("OPENAI_MODEL"); m != "" {
			c.Model = m
		}
	case ProviderAnthropic:
		if m := os.Getenv("ANTHROPIC_MODEL"); m != "" {
			c.Model = m
		}
	case ProviderOllama:
		if m := os.Getenv("OLLAMA_MODEL"); m != "" {
			c.Model = m
		}
		if h := os.Getenv("OLLAMA_HOST"); h != "" {
			c.BaseURL = h
		}
	}
	return c, nil
}
