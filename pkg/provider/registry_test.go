package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsnhff/regender/pkg/config"
)

func TestRegistryCreateFromConfigEachType(t *testing.T) {
	cases := []struct {
		name string
		cfg  *config.ProviderConfig
		want any
	}{
		{"openai", &config.ProviderConfig{Type: config.ProviderOpenAI, APIKey: "k"}, &OpenAIProvider{}},
		{"anthropic", &config.ProviderConfig{Type: config.ProviderAnthropic, APIKey: "k"}, &AnthropicProvider{}},
		{"ollama", &config.ProviderConfig{Type: config.ProviderOllama}, &OllamaProvider{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			p, err := r.CreateFromConfig(tc.name, tc.cfg)
			require.NoError(t, err)
			assert.IsType(t, tc.want, p)

			got, ok := r.Get(tc.name)
			require.True(t, ok)
			assert.Same(t, p, got)
		})
	}
}

func TestRegistryCreateFromConfigRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateFromConfig("", &config.ProviderConfig{Type: config.ProviderOllama})
	assert.Error(t, err)
}

func TestRegistryCreateFromConfigRejectsNilConfig(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateFromConfig("x", nil)
	assert.Error(t, err)
}

func TestRegistryCreateFromConfigRejectsUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateFromConfig("x", &config.ProviderConfig{Type: "bogus"})
	assert.Error(t, err)
}
