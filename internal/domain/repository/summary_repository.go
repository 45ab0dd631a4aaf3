package repository

import (
	"context"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
)

// SummaryRepository persists conversation summaries.
type SummaryRepository interface {
	// Create stores a new summary.
	Create(ctx context.Context, summary *entity.Summary) error
	// FindLatest returns the most recent summary for a task, or nil when the
	// task has never been summarized.
	FindLatest(ctx context.Context, taskID string) (*entity.Summary, error)
}
