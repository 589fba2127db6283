package provider

import (
	"fmt"

	"github.com/jsnhff/regender/pkg/config"
	"github.com/jsnhff/regender/pkg/registry"
)

// Registry manages named Provider instances, mirroring the teacher's generic
// registry pattern rather than a package-level singleton map.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// CreateFromConfig constructs a Provider of the configured type, registers
// it under name, and returns it.
func (r *Registry) CreateFromConfig(name string, cfg *config.ProviderConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("provider config cannot be nil")
	}

	var p Provider
	var err error
	switch cfg.Type {
	case config.ProviderOpenAI:
		p, err = NewOpenAIProvider(cfg)
	case config.ProviderAnthropic:
		p, err = NewAnthropicProvider(cfg)
	case config.ProviderOllama:
		p, err = NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", name, err)
	}

	if err := r.Register(name, p); err != nil {
		return nil, fmt.Errorf("failed to register provider %q: %w", name, err)
	}
	return p, nil
}
