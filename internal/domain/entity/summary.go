package entity

import (
	"time"

	"github.com/google/uuid"
)

// Summary is compressed conversation history. Messages covered by a summary
// carry its id in their SummaryID field and are replaced by the summary text
// in subsequent context assembly.
type Summary struct {
	ID        string
	TaskID    string
	Content   string
	CreatedAt time.Time
}

// NewSummary creates a summary for the given task.
func NewSummary(taskID, content string) (*Summary, error) {
	if taskID == "" {
		return nil, ErrInvalidTaskID
	}
	if content == "" {
		return nil, ErrEmptySummary
	}
	return &Summary{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, nil
}
