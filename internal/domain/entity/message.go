package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the conversational role of a message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// Content block discriminators. The wire shape mirrors the Anthropic Messages
// API content-block format, which is also the canonical persisted form.
const (
	BlockTypeText       = "text"
	BlockTypeImage      = "image"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// Control tool names recognized by the dispatcher. Any tool whose name starts
// with ComputerToolPrefix is routed to the desktop daemon.
const (
	ComputerToolPrefix = "computer_"
	ToolSetTaskStatus  = "set_task_status"
	ToolCreateTask     = "create_task"
)

// ContentBlock is a tagged variant: text, image, tool_use, or tool_result.
// Exactly the fields for the given Type are populated; the rest stay zero so
// the JSON encoding omits them.
type ContentBlock struct {
	Type string `json:"type"`

	// Type "text"
	Text string `json:"text,omitempty"`

	// Type "image"
	Source *ImageSource `json:"source,omitempty"`

	// Type "tool_use"
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// Type "tool_result"
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// ImageSource carries inline image data (screenshots from the desktop daemon).
type ImageSource struct {
	MediaType string `json:"media_type"` // e.g. "image/png"
	Data      string `json:"data"`       // base64
}

// IsComputerToolUse reports whether the block requests a desktop-automation
// tool.
func (b ContentBlock) IsComputerToolUse() bool {
	return b.Type == BlockTypeToolUse && strings.HasPrefix(b.Name, ComputerToolPrefix)
}

// NewTextBlock builds a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// NewToolResultBlock builds a tool_result answering the given tool_use id.
func NewToolResultBlock(toolUseID string, content []ContentBlock, isError bool) ContentBlock {
	return ContentBlock{
		Type:      BlockTypeToolResult,
		ToolUseID: toolUseID,
		Content:   content,
		IsError:   isError,
	}
}

// Message is one turn in a task's conversation, ordered by CreatedAt.
// SummaryID, when set, marks the message as covered by a summary and excludes
// it from subsequent context assembly.
type Message struct {
	ID        string
	TaskID    string
	Role      Role
	Content   []ContentBlock
	SummaryID *string
	CreatedAt time.Time
}

// NewMessage creates a message for the given task.
func NewMessage(taskID string, role Role, content []ContentBlock) (*Message, error) {
	if taskID == "" {
		return nil, ErrInvalidTaskID
	}
	return &Message{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SyntheticMessage builds an unpersisted message injected into the LLM
// context only. It carries no id and no task id.
func SyntheticMessage(role Role, text string) *Message {
	return &Message{
		Role:    role,
		Content: []ContentBlock{NewTextBlock(text)},
	}
}

// ToolUseBlocks returns the tool_use blocks of the message, in order.
func (m *Message) ToolUseBlocks() []ContentBlock {
	var uses []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockTypeToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// TextContent joins all text blocks with newlines.
func (m *Message) TextContent() string {
	var texts []string
	for _, b := range m.Content {
		if b.Type == BlockTypeText && b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n")
}
