package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/service"
	llm "github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm"
	"go.uber.org/zap"
)

func testProvider(baseURL string) *Provider {
	return New(llm.ProviderConfig{Name: "openai", BaseURL: baseURL, APIKey: "sk-test"}, zap.NewNop())
}

func TestGenerateMessage_ToolCallMapping(t *testing.T) {
	var captured Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)

		_ = json.NewEncoder(w).Encode(Response{
			Choices: []Choice{{
				Message: ResponseMessage{
					Role: "assistant",
					ToolCalls: []ToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: FunctionCall{
							Name:      "computer_click_mouse",
							Arguments: `{"button":"left"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
			Usage: Usage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60},
		})
	}))
	defer server.Close()

	userMsg, _ := entity.NewMessage("task-1", entity.RoleUser,
		[]entity.ContentBlock{entity.NewTextBlock("click the button")})

	p := testProvider(server.URL)
	resp, err := p.GenerateMessage(context.Background(), &service.GenerateRequest{
		SystemPrompt: "desktop agent",
		Messages:     []*entity.Message{userMsg},
		Model:        "gpt-4.1",
	})
	if err != nil {
		t.Fatalf("GenerateMessage: %v", err)
	}

	if captured.Messages[0].Role != "system" {
		t.Errorf("expected leading system message, got %s", captured.Messages[0].Role)
	}

	if len(resp.ContentBlocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(resp.ContentBlocks))
	}
	use := resp.ContentBlocks[0]
	if use.Type != entity.BlockTypeToolUse || use.ID != "call_1" {
		t.Errorf("unexpected tool_use: %+v", use)
	}
	if got := use.Input["button"]; got != "left" {
		t.Errorf("expected parsed arguments, got %v", use.Input)
	}
	if resp.TokenUsage.TotalTokens != 60 {
		t.Errorf("expected 60 tokens, got %d", resp.TokenUsage.TotalTokens)
	}
}

func TestGenerateMessage_ToolResultsBecomeToolMessages(t *testing.T) {
	var captured Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(Response{
			Choices: []Choice{{Message: ResponseMessage{Role: "assistant", Content: "done"}}},
		})
	}))
	defer server.Close()

	assistant, _ := entity.NewMessage("task-1", entity.RoleAssistant, []entity.ContentBlock{
		entity.NewTextBlock("clicking now"),
		{Type: entity.BlockTypeToolUse, ID: "call_1", Name: "computer_click_mouse", Input: map[string]any{"button": "left"}},
	})
	results, _ := entity.NewMessage("task-1", entity.RoleUser, []entity.ContentBlock{
		entity.NewToolResultBlock("call_1",
			[]entity.ContentBlock{entity.NewTextBlock("Success")}, false),
	})

	p := testProvider(server.URL)
	if _, err := p.GenerateMessage(context.Background(), &service.GenerateRequest{
		Messages: []*entity.Message{assistant, results},
		Model:    "gpt-4.1",
	}); err != nil {
		t.Fatalf("GenerateMessage: %v", err)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(captured.Messages))
	}
	assistantMsg := captured.Messages[0]
	if assistantMsg.Role != "assistant" || len(assistantMsg.ToolCalls) != 1 {
		t.Errorf("unexpected assistant message: %+v", assistantMsg)
	}
	if assistantMsg.ToolCalls[0].Function.Arguments != `{"button":"left"}` {
		t.Errorf("arguments not JSON-encoded: %q", assistantMsg.ToolCalls[0].Function.Arguments)
	}
	toolMsg := captured.Messages[1]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call_1" {
		t.Errorf("unexpected tool message: %+v", toolMsg)
	}
}

func TestGenerateMessage_UnparseableArgumentsKeptRaw(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{
			Choices: []Choice{{
				Message: ResponseMessage{
					Role: "assistant",
					ToolCalls: []ToolCall{{
						ID:       "call_1",
						Type:     "function",
						Function: FunctionCall{Name: "computer_wait", Arguments: `{"duration": not-json`},
					}},
				},
			}},
		})
	}))
	defer server.Close()

	p := testProvider(server.URL)
	resp, err := p.GenerateMessage(context.Background(), &service.GenerateRequest{Model: "gpt-4.1"})
	if err != nil {
		t.Fatalf("GenerateMessage: %v", err)
	}
	if raw, ok := resp.ContentBlocks[0].Input["_raw"]; !ok || raw == "" {
		t.Errorf("expected raw arguments preserved, got %v", resp.ContentBlocks[0].Input)
	}
}
