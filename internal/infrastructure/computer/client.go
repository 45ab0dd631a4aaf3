package computer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/service"
	"go.uber.org/zap"
)

// Client executes computer_* tool-use blocks against the desktop daemon's
// /computer-use endpoint. It implements service.ComputerToolHandler:
// failures are reported inside the returned tool_result (IsError), never as
// Go errors, so the dispatcher's failure counter is the only error path.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// actionRequest is the daemon's request body: the action name plus the
// tool's input parameters flattened alongside it.
type actionRequest map[string]any

// actionResponse is the daemon's response. Screenshot-style actions return
// an image; everything else returns arbitrary JSON data.
type actionResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Image   string          `json:"image,omitempty"` // base64 PNG
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewClient creates a desktop daemon client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: transport},
		logger:  logger.With(zap.String("component", "computer")),
	}
}

var _ service.ComputerToolHandler = (*Client)(nil)

// HandleComputerToolUse executes one desktop tool call and returns its
// tool_result block.
func (c *Client) HandleComputerToolUse(ctx context.Context, block entity.ContentBlock) entity.ContentBlock {
	action := strings.TrimPrefix(block.Name, entity.ComputerToolPrefix)

	payload := actionRequest{"action": action}
	for k, v := range block.Input {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return c.errorResult(block, fmt.Sprintf("invalid tool input: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/computer-use", bytes.NewReader(body))
	if err != nil {
		return c.errorResult(block, fmt.Sprintf("request build failed: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return c.errorResult(block, fmt.Sprintf("desktop daemon unreachable: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.errorResult(block, fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return c.errorResult(block, fmt.Sprintf("desktop daemon error %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	var parsed actionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return c.errorResult(block, fmt.Sprintf("unparseable daemon response: %v", err))
	}
	if !parsed.Success && parsed.Error != "" {
		return c.errorResult(block, parsed.Error)
	}

	c.logger.Debug("Computer action executed",
		zap.String("action", action),
		zap.Duration("duration", time.Since(start)),
	)

	var content []entity.ContentBlock
	if parsed.Image != "" {
		content = append(content, entity.ContentBlock{
			Type:   entity.BlockTypeImage,
			Source: &entity.ImageSource{MediaType: "image/png", Data: parsed.Image},
		})
	}
	if len(parsed.Data) > 0 && string(parsed.Data) != "null" {
		content = append(content, entity.NewTextBlock(string(parsed.Data)))
	}
	if len(content) == 0 {
		content = append(content, entity.NewTextBlock("Success"))
	}

	return entity.NewToolResultBlock(block.ID, content, false)
}

func (c *Client) errorResult(block entity.ContentBlock, msg string) entity.ContentBlock {
	c.logger.Warn("Computer action failed",
		zap.String("tool", block.Name),
		zap.String("error", msg),
	)
	return entity.NewToolResultBlock(block.ID,
		[]entity.ContentBlock{entity.NewTextBlock(msg)}, true)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
