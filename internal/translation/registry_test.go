package translation

import (
	"context"
	"testing"
)

type namedStubProvider struct {
	name string
}

func (p *namedStubProvider) Name() string        { return p.name }
func (p *namedStubProvider) Credentialed() bool  { return false }

func (p *namedStubProvider) TranslateText(_ context.Context, _ TextRequest) (*TextResponse, error) {
	return &TextResponse{Text: "ok", ProviderName: p.name}, nil
}

func (p *namedStubProvider) TranslateSegments(_ context.Context, _ SegmentsRequest) (*SegmentsResponse, error) {
	return &SegmentsResponse{ProviderName: p.name}, nil
}

func TestRegistryChainPreservesOrder(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	for _, name := range []string{"primary", "secondary", "fallback"} {
		if err := registry.Register(&namedStubProvider{name: name}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	chain := registry.Chain()
	if len(chain) != 3 {
		t.Fatalf("unexpected chain length: %d", len(chain))
	}
	for i, want := range []string{"primary", "secondary", "fallback"} {
		if chain[i].Name() != want {
			t.Fatalf("chain[%d] = %q, want %q", i, chain[i].Name(), want)
		}
	}
}

func TestRegistryProviderLookup(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register(&namedStubProvider{name: "libre"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	provider, err := registry.Provider(" Libre ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if provider.Name() != "libre" {
		t.Fatalf("unexpected provider: %q", provider.Name())
	}

	if _, err := registry.Provider("missing"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	if !IsTransient(Transientf("rate limited")) {
		t.Fatalf("expected transient error to be transient")
	}
	if IsPermanent(Transientf("rate limited")) {
		t.Fatalf("did not expect transient error to be permanent")
	}
	if !IsPermanent(Permanentf("bad input")) {
		t.Fatalf("expected permanent error to be permanent")
	}
	if IsTransient(nil) || IsPermanent(nil) {
		t.Fatalf("nil must not classify")
	}
}
