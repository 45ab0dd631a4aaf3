package service

import (
	"context"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/tool"
)

// MessageGenerator is the single capability the processor needs from an LLM
// backend. It decouples the iteration loop from provider wire formats.
type MessageGenerator interface {
	// GenerateMessage sends the conversation to the model and returns the
	// full assistant response. Implementations must honor ctx cancellation
	// by returning an AgentInterrupt, and must return empty ContentBlocks
	// only when the model truly produced nothing.
	GenerateMessage(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// ProviderResolver maps a provider tag to its MessageGenerator.
type ProviderResolver interface {
	Resolve(provider string) (MessageGenerator, bool)
}

// GenerateRequest is one generate-message call.
type GenerateRequest struct {
	SystemPrompt string
	Messages     []*entity.Message
	Model        string
	ToolsEnabled bool
	Tools        []tool.Definition
}

// GenerateResponse is the assistant turn produced by the model.
type GenerateResponse struct {
	ContentBlocks []entity.ContentBlock
	TokenUsage    TokenUsage
}

// TokenUsage reports token consumption of one call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ComputerToolHandler executes a desktop tool_use block against the desktop
// daemon. Failures are reported inside the returned tool_result block
// (IsError), never as Go errors — the dispatcher's failure counter is the
// error path.
type ComputerToolHandler interface {
	HandleComputerToolUse(ctx context.Context, block entity.ContentBlock) entity.ContentBlock
}

// InputCapture starts and stops user-input forwarding on the desktop daemon
// while a human has taken over a task.
type InputCapture interface {
	Start(taskID string)
	Stop()
}

// Metrics receives processor counters. Implemented by the monitoring
// package; NoopMetrics keeps tests and minimal wiring quiet.
type Metrics interface {
	RecordIteration()
	RecordProviderCall(provider string, tokens int)
	RecordToolCall(name string, success bool)
	RecordInterrupt()
	RecordSummarization(err error)
	RecordTaskStatus(status entity.TaskStatus)
}

// NoopMetrics discards all counters.
type NoopMetrics struct{}

func (NoopMetrics) RecordIteration()                   {}
func (NoopMetrics) RecordProviderCall(string, int)     {}
func (NoopMetrics) RecordToolCall(string, bool)        {}
func (NoopMetrics) RecordInterrupt()                   {}
func (NoopMetrics) RecordSummarization(error)          {}
func (NoopMetrics) RecordTaskStatus(entity.TaskStatus) {}
