package openai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/service"
	llm "github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm"
	"go.uber.org/zap"
)

func init() {
	llm.RegisterFactory("openai", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider is a Go-native OpenAI-compatible HTTP client. The proxy provider
// reuses it against any Chat Completions-compatible endpoint.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	models  []string
	client  *http.Client
	logger  *zap.Logger
}

// New creates an OpenAI-compatible LLM provider.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 300 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Provider{
		name:    cfg.Name,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		models:  cfg.Models,
		client:  &http.Client{Transport: transport},
		logger:  logger.With(zap.String("provider", cfg.Name), zap.String("type", "openai")),
	}
}

// Compile-time interface check
var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Name() string     { return p.name }
func (p *Provider) Models() []string { return p.models }

func (p *Provider) IsAvailable() bool {
	return p.apiKey != ""
}

// GenerateMessage implements service.MessageGenerator.
func (p *Provider) GenerateMessage(ctx context.Context, req *service.GenerateRequest) (*service.GenerateResponse, error) {
	apiReq := p.buildAPIRequest(req)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, service.NewInterrupt(ctx.Err())
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, service.NewInterrupt(ctx.Err())
		}
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	return p.parseAPIResponse(respBody)
}

// --- Internal ---

func (p *Provider) buildAPIRequest(req *service.GenerateRequest) *Request {
	apiReq := &Request{Model: req.Model}

	if req.SystemPrompt != "" {
		apiReq.Messages = append(apiReq.Messages, Message{Role: "system", Content: req.SystemPrompt})
	}

	for _, msg := range req.Messages {
		if msg.Role == entity.RoleAssistant {
			apiReq.Messages = append(apiReq.Messages, toAssistantMessage(msg))
			continue
		}
		apiReq.Messages = append(apiReq.Messages, toUserMessages(msg)...)
	}

	if req.ToolsEnabled {
		for _, td := range req.Tools {
			apiReq.Tools = append(apiReq.Tools, Tool{
				Type: "function",
				Function: FunctionDef{
					Name:        td.Name,
					Description: td.Description,
					Parameters:  td.Parameters,
				},
			})
		}
	}

	return apiReq
}

// toAssistantMessage folds an assistant turn into one message: text blocks
// become the content, tool_use blocks become tool_calls.
func toAssistantMessage(msg *entity.Message) Message {
	out := Message{Role: "assistant", Content: msg.TextContent()}
	for _, b := range msg.Content {
		if b.Type != entity.BlockTypeToolUse {
			continue
		}
		args := "{}"
		if b.Input != nil {
			if raw, err := json.Marshal(b.Input); err == nil {
				args = string(raw)
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:       b.ID,
			Type:     "function",
			Function: FunctionCall{Name: b.Name, Arguments: args},
		})
	}
	return out
}

// toUserMessages splits a user turn: tool_result blocks become individual
// role=tool messages (they must answer the preceding tool_calls), the rest
// becomes one user message with multimodal parts.
func toUserMessages(msg *entity.Message) []Message {
	var out []Message
	var parts []ContentPart

	for _, b := range msg.Content {
		switch b.Type {
		case entity.BlockTypeToolResult:
			out = append(out, Message{
				Role:       "tool",
				Content:    flattenResultText(b),
				ToolCallID: b.ToolUseID,
			})
		case entity.BlockTypeText:
			parts = append(parts, ContentPart{Type: "text", Text: b.Text})
		case entity.BlockTypeImage:
			if b.Source != nil {
				parts = append(parts, ContentPart{
					Type:     "image_url",
					ImageURL: &ImageURL{URL: "data:" + b.Source.MediaType + ";base64," + b.Source.Data},
				})
			}
		}
	}

	if len(parts) == 1 && parts[0].Type == "text" {
		out = append(out, Message{Role: "user", Content: parts[0].Text})
	} else if len(parts) > 0 {
		out = append(out, Message{Role: "user", Content: parts})
	}
	return out
}

// flattenResultText renders a tool_result's nested blocks as plain text;
// the Chat Completions tool role cannot carry images.
func flattenResultText(b entity.ContentBlock) string {
	var texts []string
	for _, inner := range b.Content {
		switch inner.Type {
		case entity.BlockTypeText:
			if inner.Text != "" {
				texts = append(texts, inner.Text)
			}
		case entity.BlockTypeImage:
			texts = append(texts, "[screenshot attached]")
		}
	}
	if len(texts) == 0 {
		if b.IsError {
			return "error"
		}
		return "ok"
	}
	return strings.Join(texts, "\n")
}

func (p *Provider) parseAPIResponse(body []byte) (*service.GenerateResponse, error) {
	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return &service.GenerateResponse{
			TokenUsage: toUsage(apiResp.Usage),
		}, nil
	}

	choice := apiResp.Choices[0]
	resp := &service.GenerateResponse{TokenUsage: toUsage(apiResp.Usage)}

	if choice.Message.Content != "" {
		resp.ContentBlocks = append(resp.ContentBlocks, entity.NewTextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				p.logger.Warn("Unparseable tool arguments",
					zap.String("tool", tc.Function.Name),
					zap.Error(err),
				)
				input = map[string]any{"_raw": tc.Function.Arguments}
			}
		}
		resp.ContentBlocks = append(resp.ContentBlocks, entity.ContentBlock{
			Type:  entity.BlockTypeToolUse,
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	return resp, nil
}

func toUsage(u Usage) service.TokenUsage {
	return service.TokenUsage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}
