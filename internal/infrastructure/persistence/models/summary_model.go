package models

import (
	"time"
)

// SummaryModel is the database row for a conversation summary.
type SummaryModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	TaskID    string `gorm:"index;size:64;not null"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// TableName sets the table name.
func (SummaryModel) TableName() string {
	return "summaries"
}
