package proxy

import (
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm/openai"
	"go.uber.org/zap"
)

func init() {
	llm.RegisterFactory("proxy", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider routes generate-message calls through an OpenAI-compatible LLM
// proxy (LiteLLM-style) at BYTEBOT_LLM_PROXY_URL. It reuses the openai wire
// client; availability is keyed on the endpoint rather than an API key, and
// any model name is accepted — the proxy owns the model catalogue.
type Provider struct {
	*openai.Provider
	baseURL string
}

// New creates a proxy provider.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	return &Provider{
		Provider: openai.New(cfg, logger.With(zap.String("via", "proxy"))),
		baseURL:  cfg.BaseURL,
	}
}

var _ llm.Provider = (*Provider)(nil)

// IsAvailable reports whether a proxy endpoint is configured.
func (p *Provider) IsAvailable() bool {
	return p.baseURL != ""
}
