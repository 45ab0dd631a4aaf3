package persistence

import (
	"context"
	"errors"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/repository"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/persistence/models"
	domainErrors "github.com/bytebot-ai/bytebot/agent/pkg/errors"
	"gorm.io/gorm"
)

// GormSummaryRepository is the gorm implementation of SummaryRepository.
type GormSummaryRepository struct {
	db *gorm.DB
}

// NewGormSummaryRepository creates a summary repository.
func NewGormSummaryRepository(db *gorm.DB) repository.SummaryRepository {
	return &GormSummaryRepository{db: db}
}

// Create stores a new summary.
func (r *GormSummaryRepository) Create(ctx context.Context, summary *entity.Summary) error {
	model := &models.SummaryModel{
		ID:        summary.ID,
		TaskID:    summary.TaskID,
		Content:   summary.Content,
		CreatedAt: summary.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to create summary", err)
	}
	return nil
}

// FindLatest returns the most recent summary for a task, or nil when the
// task has never been summarized.
func (r *GormSummaryRepository) FindLatest(ctx context.Context, taskID string) (*entity.Summary, error) {
	var model models.SummaryModel
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at desc").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find summary", err)
	}
	return &entity.Summary{
		ID:        model.ID,
		TaskID:    model.TaskID,
		Content:   model.Content,
		CreatedAt: model.CreatedAt,
	}, nil
}
