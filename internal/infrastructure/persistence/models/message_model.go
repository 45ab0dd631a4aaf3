package models

import (
	"time"
)

// MessageModel is the database row for a conversation message. Content
// holds the ordered content-block array as JSON text.
type MessageModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	TaskID    string    `gorm:"index;size:64;not null"`
	Role      string    `gorm:"size:16;not null"`
	Content   string    `gorm:"type:text;not null"`
	SummaryID *string   `gorm:"index;size:64"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName sets the table name.
func (MessageModel) TableName() string {
	return "messages"
}
