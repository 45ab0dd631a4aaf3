package llm

import (
	"context"
	"testing"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/service"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/valueobject"
	"go.uber.org/zap"
)

type stubProvider struct {
	name      string
	available bool
}

func (s *stubProvider) GenerateMessage(ctx context.Context, req *service.GenerateRequest) (*service.GenerateResponse, error) {
	return &service.GenerateResponse{}, nil
}
func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) Models() []string  { return nil }
func (s *stubProvider) IsAvailable() bool { return s.available }

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Add(&stubProvider{name: "anthropic", available: true})
	r.Add(&stubProvider{name: "google", available: false})

	if _, ok := r.Resolve("anthropic"); !ok {
		t.Error("expected anthropic to resolve")
	}
	if _, ok := r.Resolve("google"); ok {
		t.Error("unavailable providers must not resolve")
	}
	if _, ok := r.Resolve("openai"); ok {
		t.Error("unregistered tags must not resolve")
	}
}

func TestRegistry_Tags(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Add(&stubProvider{name: "proxy", available: true})
	r.Add(&stubProvider{name: "openai", available: false})

	tags := r.Tags()
	if len(tags) != 1 || tags[0] != "proxy" {
		t.Errorf("expected only proxy available, got %v", tags)
	}
}

func TestCreateProvider_UnknownTag(t *testing.T) {
	if _, err := CreateProvider("smoke-signals", ProviderConfig{}, zap.NewNop()); err == nil {
		t.Error("expected error for unknown provider tag")
	}
}

func TestCatalogue_EnvGating(t *testing.T) {
	t.Setenv(EnvAnthropicAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvGeminiAPIKey, "")
	t.Setenv(EnvLLMProxyURL, "")

	if models := Catalogue(nil); len(models) != 0 {
		t.Errorf("expected empty catalogue without credentials, got %v", models)
	}

	t.Setenv(EnvAnthropicAPIKey, "sk-test")
	models := Catalogue(nil)
	if len(models) == 0 {
		t.Fatal("expected anthropic models with key present")
	}
	for _, m := range models {
		if m.Provider != valueobject.ProviderAnthropic {
			t.Errorf("unexpected provider %s in anthropic-only catalogue", m.Provider)
		}
	}
}

func TestCatalogue_ProxyOverridesDirect(t *testing.T) {
	t.Setenv(EnvAnthropicAPIKey, "sk-test")
	t.Setenv(EnvLLMProxyURL, "http://proxy:4000")

	models := Catalogue([]string{"gpt-4.1", "claude-opus-4-1"})
	if len(models) != 2 {
		t.Fatalf("expected 2 proxy models, got %d", len(models))
	}
	for _, m := range models {
		if m.Provider != valueobject.ProviderProxy {
			t.Errorf("expected proxy provider, got %s", m.Provider)
		}
	}
}
