package valueobject

import (
	"encoding/json"
	"testing"
)

func TestResolveModelDescriptor(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ModelDescriptor
	}{
		{
			name: "full object",
			raw:  `{"provider":"anthropic","name":"claude-opus-4-1","title":"Claude Opus 4.1","contextWindow":200000}`,
			want: ModelDescriptor{Provider: "anthropic", Name: "claude-opus-4-1", Title: "Claude Opus 4.1", ContextWindow: 200000},
		},
		{
			name: "object without title defaults to name",
			raw:  `{"provider":"openai","name":"gpt-4.1"}`,
			want: ModelDescriptor{Provider: "openai", Name: "gpt-4.1", Title: "gpt-4.1"},
		},
		{
			name: "object with name only infers provider",
			raw:  `{"name":"gemini-2.5-pro"}`,
			want: ModelDescriptor{Provider: "google", Name: "gemini-2.5-pro", Title: "gemini-2.5-pro"},
		},
		{
			name: "bare claude string",
			raw:  `"claude-3-sonnet"`,
			want: ModelDescriptor{Provider: "anthropic", Name: "claude-3-sonnet", Title: "claude-3-sonnet"},
		},
		{
			name: "bare gpt string",
			raw:  `"gpt-4.1-mini"`,
			want: ModelDescriptor{Provider: "openai", Name: "gpt-4.1-mini", Title: "gpt-4.1-mini"},
		},
		{
			name: "openai substring",
			raw:  `"openai/o4-mini"`,
			want: ModelDescriptor{Provider: "openai", Name: "openai/o4-mini", Title: "openai/o4-mini"},
		},
		{
			name: "unknown name falls back to proxy",
			raw:  `"qwen3-coder-plus"`,
			want: ModelDescriptor{Provider: "proxy", Name: "qwen3-coder-plus", Title: "qwen3-coder-plus"},
		},
		{
			name: "number yields default",
			raw:  `42`,
			want: ModelDescriptor{Provider: "openai", Name: "gpt-4.1-mini", Title: "gpt-4.1-mini"},
		},
		{
			name: "null yields default",
			raw:  `null`,
			want: ModelDescriptor{Provider: "openai", Name: "gpt-4.1-mini", Title: "gpt-4.1-mini"},
		},
		{
			name: "empty yields default",
			raw:  ``,
			want: ModelDescriptor{Provider: "openai", Name: "gpt-4.1-mini", Title: "gpt-4.1-mini"},
		},
		{
			name: "object without name yields default",
			raw:  `{"provider":"anthropic"}`,
			want: ModelDescriptor{Provider: "openai", Name: "gpt-4.1-mini", Title: "gpt-4.1-mini"},
		},
		{
			name: "malformed JSON treated as bare name",
			raw:  `claude-raw-legacy`,
			want: ModelDescriptor{Provider: "anthropic", Name: "claude-raw-legacy", Title: "claude-raw-legacy"},
		},
		{
			name: "context window as float",
			raw:  `{"provider":"proxy","name":"llama-4","contextWindow":128000}`,
			want: ModelDescriptor{Provider: "proxy", Name: "llama-4", Title: "llama-4", ContextWindow: 128000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveModelDescriptor(json.RawMessage(tt.raw))
			if got != tt.want {
				t.Errorf("ResolveModelDescriptor(%s) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestContextWindowOrDefault(t *testing.T) {
	if got := (ModelDescriptor{}).ContextWindowOrDefault(); got != DefaultContextWindow {
		t.Errorf("expected default %d, got %d", DefaultContextWindow, got)
	}
	if got := (ModelDescriptor{ContextWindow: 32000}).ContextWindowOrDefault(); got != 32000 {
		t.Errorf("expected 32000, got %d", got)
	}
}

// The resolver is total: whatever the input, the provider tag is one
// of the four known tags.
func TestResolveModelDescriptor_Total(t *testing.T) {
	known := map[string]bool{
		ProviderAnthropic: true,
		ProviderOpenAI:    true,
		ProviderGoogle:    true,
		ProviderProxy:     true,
	}
	inputs := []string{
		`{}`, `[]`, `[1,2]`, `true`, `""`, `"x"`, `3.14`, `{"name":""}`,
		`{"provider":123,"name":"m"}`, "{{{", `"claude"`, `"gemini"`, `"gpt-"`,
	}
	for _, raw := range inputs {
		got := ResolveModelDescriptor(json.RawMessage(raw))
		if !known[got.Provider] {
			t.Errorf("input %s produced unknown provider %q", raw, got.Provider)
		}
		if got.Name == "" {
			t.Errorf("input %s produced empty name", raw)
		}
	}
}
