package google

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
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func init() {
	llm.RegisterFactory("google", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider implements the Google Gemini API natively.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	models  []string
	client  *http.Client
	logger  *zap.Logger
}

// New creates a Google Gemini API provider.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
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
		logger:  logger.With(zap.String("provider", cfg.Name), zap.String("type", "google")),
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

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, req.Model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

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
		return nil, fmt.Errorf("Gemini API error %d: %s", resp.StatusCode, string(respBody))
	}

	return p.parseAPIResponse(respBody)
}

// --- Internal ---

func (p *Provider) buildAPIRequest(req *service.GenerateRequest) *Request {
	apiReq := &Request{}

	if req.SystemPrompt != "" {
		apiReq.SystemInstruction = &Content{Parts: []Part{{Text: req.SystemPrompt}}}
	}

	// Gemini keys tool results by function name, not call id. Track the
	// names of tool_use blocks so tool_results can be mapped back.
	toolNames := make(map[string]string)
	for _, msg := range req.Messages {
		for _, b := range msg.Content {
			if b.Type == entity.BlockTypeToolUse {
				toolNames[b.ID] = b.Name
			}
		}
	}

	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == entity.RoleAssistant {
			role = "model"
		}
		parts := toAPIParts(msg.Content, toolNames)
		if len(parts) > 0 {
			apiReq.Contents = append(apiReq.Contents, Content{Role: role, Parts: parts})
		}
	}

	if req.ToolsEnabled && len(req.Tools) > 0 {
		decl := ToolDeclaration{}
		for _, td := range req.Tools {
			decl.FunctionDeclarations = append(decl.FunctionDeclarations, FunctionDeclarationSpec{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			})
		}
		apiReq.Tools = []ToolDeclaration{decl}
	}

	return apiReq
}

func toAPIParts(blocks []entity.ContentBlock, toolNames map[string]string) []Part {
	parts := make([]Part, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case entity.BlockTypeText:
			parts = append(parts, Part{Text: b.Text})
		case entity.BlockTypeImage:
			if b.Source != nil {
				parts = append(parts, Part{InlineData: &InlineData{
					MimeType: b.Source.MediaType,
					Data:     b.Source.Data,
				}})
			}
		case entity.BlockTypeToolUse:
			parts = append(parts, Part{FunctionCall: &FunctionCall{Name: b.Name, Args: b.Input}})
		case entity.BlockTypeToolResult:
			name := toolNames[b.ToolUseID]
			if name == "" {
				name = "unknown"
			}
			response := map[string]any{"content": resultText(b)}
			if b.IsError {
				response["error"] = true
			}
			parts = append(parts, Part{FunctionResponse: &FunctionResponse{
				Name:     name,
				Response: response,
			}})
			// Screenshots ride alongside the function response.
			for _, inner := range b.Content {
				if inner.Type == entity.BlockTypeImage && inner.Source != nil {
					parts = append(parts, Part{InlineData: &InlineData{
						MimeType: inner.Source.MediaType,
						Data:     inner.Source.Data,
					}})
				}
			}
		}
	}
	return parts
}

func resultText(b entity.ContentBlock) string {
	var texts []string
	for _, inner := range b.Content {
		if inner.Type == entity.BlockTypeText && inner.Text != "" {
			texts = append(texts, inner.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (p *Provider) parseAPIResponse(body []byte) (*service.GenerateResponse, error) {
	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse Gemini response: %w", err)
	}

	resp := &service.GenerateResponse{}
	if apiResp.UsageMetadata != nil {
		resp.TokenUsage = service.TokenUsage{
			InputTokens:  apiResp.UsageMetadata.PromptTokenCount,
			OutputTokens: apiResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  apiResp.UsageMetadata.TotalTokenCount,
		}
	}

	if len(apiResp.Candidates) == 0 {
		return resp, nil
	}

	for _, part := range apiResp.Candidates[0].Content.Parts {
		switch {
		case part.Text != "":
			resp.ContentBlocks = append(resp.ContentBlocks, entity.NewTextBlock(part.Text))
		case part.FunctionCall != nil:
			// Gemini carries no call ids; mint one so tool results can
			// answer it.
			resp.ContentBlocks = append(resp.ContentBlocks, entity.ContentBlock{
				Type:  entity.BlockTypeToolUse,
				ID:    "call_" + uuid.NewString(),
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
		}
	}

	return resp, nil
}
