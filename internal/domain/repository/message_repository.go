package repository

import (
	"context"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
)

// MessageRepository persists conversation messages.
type MessageRepository interface {
	// Create stores a new message.
	Create(ctx context.Context, message *entity.Message) error
	// FindUnsummarized returns the task's messages with no summary id,
	// ordered by creation time ascending.
	FindUnsummarized(ctx context.Context, taskID string) ([]*entity.Message, error)
	// FindByTaskID returns all messages of a task ordered by creation time.
	FindByTaskID(ctx context.Context, taskID string) ([]*entity.Message, error)
	// AttachSummary sets the summary id on the given message ids.
	AttachSummary(ctx context.Context, taskID, summaryID string, messageIDs []string) error
}
