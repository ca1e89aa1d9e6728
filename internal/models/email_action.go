package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActionType classifies an extracted action item.
type ActionType string

const (
	ActionDeadline       ActionType = "deadline"
	ActionRSVP           ActionType = "rsvp"
	ActionPermissionForm ActionType = "permission_form"
	ActionPayment        ActionType = "payment"
	ActionTask           ActionType = "task"
	ActionReminder       ActionType = "reminder"
	ActionOther          ActionType = "other"
)

// EmailAction is an action item extracted from a classified email.
// Actions have no verification tri-state; they are tracked through the
// completion flag, which the dashboard toggles.
type EmailAction struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	EmailID string `gorm:"not null;index;size:36" json:"email_id"`
	UserID  string `gorm:"not null;index;size:36" json:"user_id"`

	ActionType ActionType    `gorm:"size:30;not null" json:"action_type"`
	ActionText string        `gorm:"not null" json:"action_text"`
	DueDate    *time.Time    `json:"due_date,omitempty"`
	Priority   EmailPriority `gorm:"size:10" json:"priority"`

	IsCompleted bool       `gorm:"default:false" json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Email Email `gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for EmailAction
func (EmailAction) TableName() string {
	return "email_actions"
}

// BeforeCreate assigns a UUID primary key if one was not provided.
func (a *EmailAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
