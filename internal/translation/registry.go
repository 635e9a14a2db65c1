package translation

import (
	"fmt"
	"strings"
)

// Registry stores translation providers in fallback order. The order of
// registration is the order the job runner tries backends: primary first,
// terminal fallback last.
type Registry struct {
	providers map[string]Provider
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// NewRegistryFromEnv creates the default fallback chain: openai (primary,
// credentialed), libre (secondary), dictionary (terminal fallback).
func NewRegistryFromEnv() *Registry {
	registry := NewRegistry()
	_ = registry.Register(NewOpenAIProviderFromEnv())
	_ = registry.Register(NewLibreProviderFromEnv())
	_ = registry.Register(NewDictionaryProvider())
	return registry
}

// Register appends one provider to the fallback chain.
func (r *Registry) Register(provider Provider) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if provider == nil {
		return fmt.Errorf("provider is nil")
	}
	name := normalizeProviderName(provider.Name())
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = provider
	return nil
}

// Provider resolves a provider by name.
func (r *Registry) Provider(name string) (Provider, error) {
	if r == nil || len(r.providers) == 0 {
		return nil, fmt.Errorf("no translation providers are registered")
	}

	resolvedName := normalizeProviderName(name)
	provider, ok := r.providers[resolvedName]
	if ok {
		return provider, nil
	}

	return nil, fmt.Errorf("translation provider %q is not registered (available: %s)", resolvedName, strings.Join(r.ProviderNames(), ", "))
}

// Chain returns the providers in registered fallback order.
func (r *Registry) Chain() []Provider {
	if r == nil {
		return nil
	}
	chain := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		chain = append(chain, r.providers[name])
	}
	return chain
}

func (r *Registry) ProviderNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func normalizeProviderName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
