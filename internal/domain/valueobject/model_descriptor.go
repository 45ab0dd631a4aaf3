package valueobject

import (
	"encoding/json"
	"strings"
)

// Provider tags known to the runtime.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderProxy     = "proxy"
)

// Default descriptor used when the persisted model field is unusable.
const (
	defaultProvider = ProviderOpenAI
	defaultModel    = "gpt-4.1-mini"
)

// DefaultContextWindow is assumed when a descriptor carries no window size.
const DefaultContextWindow = 200000

// ModelDescriptor is the canonical description of the LLM a task runs on.
// It is derived from the task's opaque persisted model field and never
// persisted by the processor itself.
type ModelDescriptor struct {
	Provider      string `json:"provider"`
	Name          string `json:"name"`
	Title         string `json:"title"`
	ContextWindow int    `json:"contextWindow,omitempty"`
}

// ContextWindowOrDefault returns the descriptor's window, falling back to
// DefaultContextWindow when unset.
func (d ModelDescriptor) ContextWindowOrDefault() int {
	if d.ContextWindow > 0 {
		return d.ContextWindow
	}
	return DefaultContextWindow
}

// ResolveModelDescriptor coerces a persisted model value of unknown shape
// into a canonical descriptor. The function is total: every input — object,
// bare string, number, null, or malformed JSON — yields a descriptor with a
// known provider tag.
func ResolveModelDescriptor(raw json.RawMessage) ModelDescriptor {
	if len(raw) == 0 {
		return defaultDescriptor()
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		// Legacy rows may hold a bare unquoted model name.
		return FromModelValue(strings.TrimSpace(string(raw)))
	}
	return FromModelValue(value)
}

// FromModelValue coerces an already-decoded model value into a descriptor.
func FromModelValue(value any) ModelDescriptor {
	switch v := value.(type) {
	case map[string]any:
		name, _ := v["name"].(string)
		if name == "" {
			return defaultDescriptor()
		}
		d := ModelDescriptor{Name: name, Title: name}
		switch provider, _ := v["provider"].(string); provider {
		case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderProxy:
			d.Provider = provider
		default:
			d.Provider = inferProvider(name)
		}
		if title, ok := v["title"].(string); ok && title != "" {
			d.Title = title
		}
		if cw, ok := v["contextWindow"].(float64); ok && cw > 0 {
			d.ContextWindow = int(cw)
		}
		return d
	case string:
		if v == "" {
			return defaultDescriptor()
		}
		return ModelDescriptor{
			Provider: inferProvider(v),
			Name:     v,
			Title:    v,
		}
	default:
		return defaultDescriptor()
	}
}

// inferProvider guesses the provider tag from a model name.
func inferProvider(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(lower, "gemini"):
		return ProviderGoogle
	case strings.HasPrefix(lower, "gpt-"), strings.Contains(lower, "openai"):
		return ProviderOpenAI
	default:
		return ProviderProxy
	}
}

func defaultDescriptor() ModelDescriptor {
	return ModelDescriptor{
		Provider: defaultProvider,
		Name:     defaultModel,
		Title:    defaultModel,
	}
}
