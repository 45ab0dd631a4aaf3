package anthropic

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

const anthropicVersion = "2023-06-01"

const defaultMaxTokens = 8192

func init() {
	llm.RegisterFactory("anthropic", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider implements the Anthropic Messages API natively.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	models  []string
	client  *http.Client
	logger  *zap.Logger
}

// New creates an Anthropic API provider.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
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
		logger:  logger.With(zap.String("provider", cfg.Name), zap.String("type", "anthropic")),
	}
}

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

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Cooperative abort of an in-flight call, not a failure.
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
		return nil, fmt.Errorf("Anthropic API error %d: %s", resp.StatusCode, string(respBody))
	}

	return p.parseAPIResponse(respBody)
}

// --- Internal ---

func (p *Provider) buildAPIRequest(req *service.GenerateRequest) *Request {
	apiReq := &Request{
		Model:     req.Model,
		MaxTokens: defaultMaxTokens,
		System:    req.SystemPrompt,
	}

	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == entity.RoleAssistant {
			role = "assistant"
		}
		blocks := toAPIBlocks(msg.Content)
		if len(blocks) > 0 {
			apiReq.Messages = append(apiReq.Messages, Message{Role: role, Content: blocks})
		}
	}

	if req.ToolsEnabled {
		for _, td := range req.Tools {
			apiReq.Tools = append(apiReq.Tools, Tool{
				Name:        td.Name,
				Description: td.Description,
				InputSchema: ConvertSchema(td.Parameters),
			})
		}
	}

	return apiReq
}

func toAPIBlocks(blocks []entity.ContentBlock) []ContentBlock {
	out := make([]ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case entity.BlockTypeText:
			out = append(out, ContentBlock{Type: "text", Text: b.Text})
		case entity.BlockTypeImage:
			if b.Source != nil {
				out = append(out, ContentBlock{Type: "image", Source: &ImageSource{
					Type:      "base64",
					MediaType: b.Source.MediaType,
					Data:      b.Source.Data,
				}})
			}
		case entity.BlockTypeToolUse:
			out = append(out, ContentBlock{Type: "tool_use", ID: b.ID, Name: b.Name, Input: b.Input})
		case entity.BlockTypeToolResult:
			out = append(out, ContentBlock{
				Type:      "tool_result",
				ToolUseID: b.ToolUseID,
				Content:   toAPIBlocks(b.Content),
				IsError:   b.IsError,
			})
		}
	}
	return out
}

func (p *Provider) parseAPIResponse(body []byte) (*service.GenerateResponse, error) {
	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse Anthropic response: %w", err)
	}

	resp := &service.GenerateResponse{
		TokenUsage: service.TokenUsage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
			TotalTokens:  apiResp.Usage.Total(),
		},
	}

	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			resp.ContentBlocks = append(resp.ContentBlocks, entity.NewTextBlock(block.Text))
		case "tool_use":
			resp.ContentBlocks = append(resp.ContentBlocks, entity.ContentBlock{
				Type:  entity.BlockTypeToolUse,
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}

	return resp, nil
}
