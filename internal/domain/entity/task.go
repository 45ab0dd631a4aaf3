package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the persisted lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusNeedsHelp TaskStatus = "NEEDS_HELP"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// IsTerminal returns true for statuses the processor never advances past.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskCreator identifies who created a task.
type TaskCreator string

const (
	CreatorUser      TaskCreator = "USER"
	CreatorAssistant TaskCreator = "ASSISTANT"
)

// TaskErrorMaxLen caps the user-visible error field on a task.
const TaskErrorMaxLen = 500

// Task is a single desktop-automation task driven by the agent processor.
//
// Model is kept opaque: older rows store a bare model-name string, newer rows
// a descriptor object, and some rows are plain garbage. The processor coerces
// it through valueobject.ResolveModelDescriptor on every iteration and never
// writes the field back.
type Task struct {
	ID           string
	Description  string
	Status       TaskStatus
	Model        json.RawMessage
	Type         string
	Priority     string
	CreatedBy    TaskCreator
	ScheduledFor *time.Time
	Error        string
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTask creates a task in PENDING state.
func NewTask(description string, model json.RawMessage, createdBy TaskCreator) (*Task, error) {
	if description == "" {
		return nil, ErrInvalidTaskDescription
	}
	now := time.Now().UTC()
	return &Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      TaskStatusPending,
		Model:       model,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// TaskPatch is a partial update applied by the task repository.
// Nil fields are left untouched.
type TaskPatch struct {
	Status      *TaskStatus
	Error       *string
	CompletedAt *time.Time
}

// TruncateError enforces the 500-char cap on user-visible task errors,
// substituting a generic message when the input is empty.
func TruncateError(msg string) string {
	if msg == "" {
		return "Processing error"
	}
	if len(msg) > TaskErrorMaxLen {
		return msg[:TaskErrorMaxLen]
	}
	return msg
}
