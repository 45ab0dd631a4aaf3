package computer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"go.uber.org/zap"
)

func screenshotBlock() entity.ContentBlock {
	return entity.ContentBlock{
		Type:  entity.BlockTypeToolUse,
		ID:    "toolu_1",
		Name:  "computer_screenshot",
		Input: map[string]any{},
	}
}

func TestHandleComputerToolUse_Screenshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/computer-use" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["action"] != "screenshot" {
			t.Errorf("expected action screenshot, got %v", payload["action"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "image": "aGVsbG8="})
	}))
	defer server.Close()

	c := NewClient(server.URL, zap.NewNop())
	result := c.HandleComputerToolUse(context.Background(), screenshotBlock())

	if result.Type != entity.BlockTypeToolResult || result.ToolUseID != "toolu_1" {
		t.Fatalf("unexpected result block: %+v", result)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result)
	}
	if len(result.Content) != 1 || result.Content[0].Type != entity.BlockTypeImage {
		t.Fatalf("expected image content, got %+v", result.Content)
	}
	if result.Content[0].Source.MediaType != "image/png" {
		t.Errorf("unexpected media type %s", result.Content[0].Source.MediaType)
	}
}

func TestHandleComputerToolUse_ActionParamsForwarded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["action"] != "click_mouse" || payload["button"] != "left" {
			t.Errorf("payload not flattened: %v", payload)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	c := NewClient(server.URL, zap.NewNop())
	result := c.HandleComputerToolUse(context.Background(), entity.ContentBlock{
		Type:  entity.BlockTypeToolUse,
		ID:    "toolu_2",
		Name:  "computer_click_mouse",
		Input: map[string]any{"button": "left"},
	})
	if result.IsError {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Content[0].Text != "Success" {
		t.Errorf("expected default Success text, got %q", result.Content[0].Text)
	}
}

func TestHandleComputerToolUse_DaemonError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "no display"})
	}))
	defer server.Close()

	c := NewClient(server.URL, zap.NewNop())
	result := c.HandleComputerToolUse(context.Background(), screenshotBlock())
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(result.Content[0].Text, "no display") {
		t.Errorf("expected daemon error surfaced, got %q", result.Content[0].Text)
	}
}

func TestHandleComputerToolUse_DaemonUnreachable(t *testing.T) {
	// Point at a closed port: the handler must return an error result, not
	// a Go error.
	c := NewClient("http://127.0.0.1:1", zap.NewNop())
	result := c.HandleComputerToolUse(context.Background(), screenshotBlock())
	if !result.IsError {
		t.Fatal("expected error result for unreachable daemon")
	}
	if result.ToolUseID != "toolu_1" {
		t.Errorf("error result must answer the tool_use id, got %q", result.ToolUseID)
	}
}

func TestHandleComputerToolUse_HTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, zap.NewNop())
	result := c.HandleComputerToolUse(context.Background(), screenshotBlock())
	if !result.IsError {
		t.Fatal("expected error result for 500 response")
	}
}
