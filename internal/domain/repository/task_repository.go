package repository

import (
	"context"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
)

// TaskRepository persists tasks.
type TaskRepository interface {
	// Create stores a new task.
	Create(ctx context.Context, task *entity.Task) error
	// FindByID loads a task by id.
	FindByID(ctx context.Context, id string) (*entity.Task, error)
	// Update applies a partial update to a task.
	Update(ctx context.Context, id string, patch entity.TaskPatch) error
}
