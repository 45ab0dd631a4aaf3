package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/repository"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/persistence/models"
	domainErrors "github.com/bytebot-ai/bytebot/agent/pkg/errors"
	"gorm.io/gorm"
)

// GormTaskRepository is the gorm implementation of TaskRepository.
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a task repository.
func NewGormTaskRepository(db *gorm.DB) repository.TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create stores a new task.
func (r *GormTaskRepository) Create(ctx context.Context, task *entity.Task) error {
	model := toTaskModel(task)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to create task", err)
	}
	return nil
}

// FindByID loads a task by id.
func (r *GormTaskRepository) FindByID(ctx context.Context, id string) (*entity.Task, error) {
	var model models.TaskModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("task not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find task", err)
	}
	return toTaskEntity(&model), nil
}

// Update applies a partial update to a task.
func (r *GormTaskRepository) Update(ctx context.Context, id string, patch entity.TaskPatch) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Status != nil {
		updates["status"] = string(*patch.Status)
	}
	if patch.Error != nil {
		updates["error"] = *patch.Error
	}
	if patch.CompletedAt != nil {
		updates["completed_at"] = *patch.CompletedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.TaskModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to update task", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("task not found")
	}
	return nil
}

// --- conversions ---

func toTaskModel(task *entity.Task) *models.TaskModel {
	return &models.TaskModel{
		ID:           task.ID,
		Description:  task.Description,
		Status:       string(task.Status),
		Model:        string(task.Model),
		Type:         task.Type,
		Priority:     task.Priority,
		CreatedBy:    string(task.CreatedBy),
		ScheduledFor: task.ScheduledFor,
		Error:        task.Error,
		CompletedAt:  task.CompletedAt,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
}

func toTaskEntity(model *models.TaskModel) *entity.Task {
	return &entity.Task{
		ID:           model.ID,
		Description:  model.Description,
		Status:       entity.TaskStatus(model.Status),
		Model:        json.RawMessage(model.Model),
		Type:         model.Type,
		Priority:     model.Priority,
		CreatedBy:    entity.TaskCreator(model.CreatedBy),
		ScheduledFor: model.ScheduledFor,
		Error:        model.Error,
		CompletedAt:  model.CompletedAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}
