package service

import (
	"context"
	"errors"
)

// InterruptName is the distinguished error identity for cooperative aborts.
// Providers raise it when their in-flight call is cancelled; the iteration
// loop answers with bounded retry instead of failing the task.
const InterruptName = "BytebotAgentInterrupt"

// AgentInterrupt signals that an iteration was cooperatively aborted
// (takeover, cancel, or shutdown) rather than genuinely failed.
type AgentInterrupt struct {
	Cause error
}

// Error implements the error interface. The message is exactly the
// interrupt name so foreign errors can be matched by message equality too.
func (e *AgentInterrupt) Error() string {
	return InterruptName
}

// Unwrap exposes the underlying cancellation cause.
func (e *AgentInterrupt) Unwrap() error {
	return e.Cause
}

// NewInterrupt wraps a cancellation cause in an AgentInterrupt.
func NewInterrupt(cause error) error {
	return &AgentInterrupt{Cause: cause}
}

// IsInterrupt classifies an error as a cooperative abort. It matches the
// AgentInterrupt type, any error whose message equals the interrupt name
// (errors round-tripped through other layers), and raw context
// cancellation from a provider that did not wrap it.
func IsInterrupt(err error) bool {
	if err == nil {
		return false
	}
	var interrupt *AgentInterrupt
	if errors.As(err, &interrupt) {
		return true
	}
	if err.Error() == InterruptName {
		return true
	}
	return errors.Is(err, context.Canceled)
}
