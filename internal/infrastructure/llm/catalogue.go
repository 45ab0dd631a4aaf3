package llm

import (
	"os"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/valueobject"
)

// Environment keys the catalogue recognizes. A provider's models are listed
// only when its credential (or proxy endpoint) is present.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvLLMProxyURL     = "BYTEBOT_LLM_PROXY_URL"
)

var anthropicModels = []valueobject.ModelDescriptor{
	{Provider: valueobject.ProviderAnthropic, Name: "claude-opus-4-1", Title: "Claude Opus 4.1", ContextWindow: 200000},
	{Provider: valueobject.ProviderAnthropic, Name: "claude-sonnet-4", Title: "Claude Sonnet 4", ContextWindow: 200000},
}

var openaiModels = []valueobject.ModelDescriptor{
	{Provider: valueobject.ProviderOpenAI, Name: "gpt-4.1", Title: "GPT-4.1", ContextWindow: 1047576},
	{Provider: valueobject.ProviderOpenAI, Name: "gpt-4.1-mini", Title: "GPT-4.1 Mini", ContextWindow: 1047576},
}

var googleModels = []valueobject.ModelDescriptor{
	{Provider: valueobject.ProviderGoogle, Name: "gemini-2.5-pro", Title: "Gemini 2.5 Pro", ContextWindow: 1048576},
	{Provider: valueobject.ProviderGoogle, Name: "gemini-2.5-flash", Title: "Gemini 2.5 Flash", ContextWindow: 1048576},
}

// Catalogue returns the model descriptors the service can currently run,
// derived from which credentials are present. When the LLM proxy is
// configured, its models (from config) are served under the proxy tag.
func Catalogue(proxyModels []string) []valueobject.ModelDescriptor {
	var result []valueobject.ModelDescriptor

	if proxyURL := os.Getenv(EnvLLMProxyURL); proxyURL != "" {
		for _, name := range proxyModels {
			result = append(result, valueobject.ModelDescriptor{
				Provider: valueobject.ProviderProxy,
				Name:     name,
				Title:    name,
			})
		}
		return result
	}

	if os.Getenv(EnvAnthropicAPIKey) != "" {
		result = append(result, anthropicModels...)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		result = append(result, openaiModels...)
	}
	if os.Getenv(EnvGeminiAPIKey) != "" {
		result = append(result, googleModels...)
	}
	return result
}
