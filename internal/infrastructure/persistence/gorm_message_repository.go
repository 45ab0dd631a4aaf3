package persistence

import (
	"context"
	"encoding/json"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/repository"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/persistence/models"
	domainErrors "github.com/bytebot-ai/bytebot/agent/pkg/errors"
	"gorm.io/gorm"
)

// GormMessageRepository is the gorm implementation of MessageRepository.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a message repository.
func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &GormMessageRepository{db: db}
}

// Create stores a new message.
func (r *GormMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	model, err := toMessageModel(message)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to create message", err)
	}
	return nil
}

// FindUnsummarized returns the task's messages with no summary id, ordered
// by creation time ascending.
func (r *GormMessageRepository) FindUnsummarized(ctx context.Context, taskID string) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND summary_id IS NULL", taskID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to find messages", err)
	}
	return toMessageEntities(rows)
}

// FindByTaskID returns all messages of a task ordered by creation time.
func (r *GormMessageRepository) FindByTaskID(ctx context.Context, taskID string) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to find messages", err)
	}
	return toMessageEntities(rows)
}

// AttachSummary sets the summary id on the given message ids.
func (r *GormMessageRepository) AttachSummary(ctx context.Context, taskID, summaryID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("task_id = ? AND id IN ?", taskID, messageIDs).
		Update("summary_id", summaryID).Error
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to attach summary", err)
	}
	return nil
}

// --- conversions ---

func toMessageModel(message *entity.Message) (*models.MessageModel, error) {
	content, err := json.Marshal(message.Content)
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to marshal content", err)
	}
	return &models.MessageModel{
		ID:        message.ID,
		TaskID:    message.TaskID,
		Role:      string(message.Role),
		Content:   string(content),
		SummaryID: message.SummaryID,
		CreatedAt: message.CreatedAt,
	}, nil
}

func toMessageEntities(rows []models.MessageModel) ([]*entity.Message, error) {
	messages := make([]*entity.Message, 0, len(rows))
	for i := range rows {
		msg, err := toMessageEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func toMessageEntity(model *models.MessageModel) (*entity.Message, error) {
	var content []entity.ContentBlock
	if model.Content != "" {
		if err := json.Unmarshal([]byte(model.Content), &content); err != nil {
			return nil, domainErrors.NewInternalErrorWithCause("failed to unmarshal content", err)
		}
	}
	return &entity.Message{
		ID:        model.ID,
		TaskID:    model.TaskID,
		Role:      entity.Role(model.Role),
		Content:   content,
		SummaryID: model.SummaryID,
		CreatedAt: model.CreatedAt,
	}, nil
}
