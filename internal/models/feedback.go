package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClassificationFeedback records a user correction to a classification
// field for later prompt improvement. It never mutates the email or
// its associations directly.
type ClassificationFeedback struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	EmailID string `gorm:"not null;index;size:36" json:"email_id"`
	UserID  string `gorm:"not null;index;size:36" json:"user_id"`

	FieldName string `gorm:"not null;size:50" json:"field_name"`
	AIValue   string `gorm:"size:500" json:"ai_value,omitempty"`
	UserValue string `gorm:"not null;size:500" json:"user_value"`

	FeedbackText string `json:"feedback_text,omitempty"`

	// Snapshot of the email for training context, so feedback survives
	// email deletion.
	EmailSubject string `gorm:"size:1000" json:"email_subject,omitempty"`
	EmailFrom    string `gorm:"size:255" json:"email_from,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for ClassificationFeedback
func (ClassificationFeedback) TableName() string {
	return "email_classification_feedback"
}

// BeforeCreate assigns a UUID primary key if one was not provided.
func (f *ClassificationFeedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
