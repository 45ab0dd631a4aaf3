package inputcapture

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/service"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client drives the desktop daemon's input-capture channel over websocket.
// During a takeover it tells the daemon to start forwarding user input for
// the task; Stop ends forwarding and closes the connection.
//
// The client is deliberately forgiving: a missing or flapping daemon is
// logged and ignored — takeover semantics never depend on capture being up.
type Client struct {
	wsURL  string
	dialer *websocket.Dialer
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// captureMessage is the control frame sent to the daemon.
type captureMessage struct {
	Event  string `json:"event"` // "start_capture" | "stop_capture"
	TaskID string `json:"taskId,omitempty"`
}

// NewClient creates an input-capture client for the desktop daemon at
// baseURL (http/https schemes are rewritten to ws/wss).
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		wsURL: toWebsocketURL(baseURL) + "/input-capture",
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger.With(zap.String("component", "input-capture")),
	}
}

var _ service.InputCapture = (*Client)(nil)

// Start begins forwarding user input for the task.
func (c *Client) Start(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, _, err := c.dialer.Dial(c.wsURL, nil)
		if err != nil {
			c.logger.Warn("Input capture unavailable",
				zap.String("url", c.wsURL),
				zap.Error(err),
			)
			return
		}
		c.conn = conn
	}

	if err := c.conn.WriteJSON(captureMessage{Event: "start_capture", TaskID: taskID}); err != nil {
		c.logger.Warn("Input capture start failed", zap.Error(err))
		c.closeLocked()
		return
	}

	c.logger.Info("Input capture started", zap.String("task_id", taskID))
}

// Stop ends forwarding and closes the connection. Safe to call repeatedly.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	if err := c.conn.WriteJSON(captureMessage{Event: "stop_capture"}); err != nil {
		c.logger.Debug("Input capture stop write failed", zap.Error(err))
	}
	c.closeLocked()
	c.logger.Info("Input capture stopped")
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func toWebsocketURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return strings.TrimRight(baseURL, "/")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return strings.TrimRight(u.String(), "/")
}
