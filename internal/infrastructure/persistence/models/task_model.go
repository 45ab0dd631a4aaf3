package models

import (
	"time"
)

// TaskModel is the database row for a task. Model holds the opaque
// descriptor as raw JSON text; the processor coerces it on read.
type TaskModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	Description  string `gorm:"type:text;not null"`
	Status       string `gorm:"index;size:32;not null"`
	Model        string `gorm:"type:text"`
	Type         string `gorm:"size:32"`
	Priority     string `gorm:"size:32"`
	CreatedBy    string `gorm:"size:32;not null"`
	ScheduledFor *time.Time
	Error        string `gorm:"size:500"`
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName sets the table name.
func (TaskModel) TableName() string {
	return "tasks"
}
