package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Child is a household member that classified emails can be linked to.
type Child struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;index;size:36" json:"user_id"`
	Name   string `gorm:"not null;size:255" json:"name"`
	Grade  string `gorm:"size:50" json:"grade,omitempty"`
	Notes  string `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Child
func (Child) TableName() string {
	return "children"
}

// BeforeCreate assigns a UUID primary key if one was not provided.
func (c *Child) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
