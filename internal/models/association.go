package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssociationType classifies how an email relates to a calendar event.
type AssociationType string

const (
	AssociationCreatesEvent AssociationType = "creates_event"
	AssociationUpdatesEvent AssociationType = "updates_event"
	AssociationRemindsAbout AssociationType = "reminds_about"
	AssociationCancelsEvent AssociationType = "cancels_event"
	AssociationRelatedTo    AssociationType = "related_to"
)

// RelevanceType classifies how an email relates to a child.
type RelevanceType string

const (
	RelevancePrimary   RelevanceType = "primary"
	RelevanceMentioned RelevanceType = "mentioned"
	RelevanceShared    RelevanceType = "shared"
	RelevanceClassWide RelevanceType = "class_wide"
)

// EmailEventAssociation links an email to a calendar event produced by
// classification. The AI confidence is only meaningful while the record
// is unverified; once a person verifies or rejects it, their decision
// is authoritative. Only the verification flow flips the tri-state.
type EmailEventAssociation struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	EmailID string `gorm:"not null;index;size:36" json:"email_id"`
	EventID string `gorm:"not null;index;size:36" json:"event_id"`
	UserID  string `gorm:"not null;index;size:36" json:"user_id"`

	AssociationType AssociationType `gorm:"size:30;not null" json:"association_type"`

	AIConfidence float64 `json:"ai_confidence"`
	AIReasoning  string  `json:"ai_reasoning,omitempty"`

	IsVerified   bool   `gorm:"default:false" json:"is_verified"`
	IsRejected   bool   `gorm:"default:false" json:"is_rejected"`
	UserFeedback string `json:"user_feedback,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Email Email         `gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE" json:"-"`
	Event CalendarEvent `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for EmailEventAssociation
func (EmailEventAssociation) TableName() string {
	return "email_event_associations"
}

// BeforeCreate assigns a UUID primary key if one was not provided.
func (a *EmailEventAssociation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// EmailChildRelevance links an email to a child the classifier believes
// it concerns. Same verification tri-state semantics as
// EmailEventAssociation.
type EmailChildRelevance struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	EmailID string `gorm:"not null;index;size:36" json:"email_id"`
	ChildID string `gorm:"not null;index;size:36" json:"child_id"`
	UserID  string `gorm:"not null;index;size:36" json:"user_id"`

	RelevanceType RelevanceType `gorm:"size:20;not null" json:"relevance_type"`

	AIConfidence       float64 `json:"ai_confidence"`
	AIReasoning        string  `json:"ai_reasoning,omitempty"`
	ExtractedChildName string  `gorm:"size:255" json:"extracted_child_name,omitempty"`

	IsVerified   bool   `gorm:"default:false" json:"is_verified"`
	IsRejected   bool   `gorm:"default:false" json:"is_rejected"`
	UserFeedback string `json:"user_feedback,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Email Email `gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE" json:"-"`
	Child Child `gorm:"foreignKey:ChildID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for EmailChildRelevance
func (EmailChildRelevance) TableName() string {
	return "email_child_relevance"
}

// BeforeCreate assigns a UUID primary key if one was not provided.
func (r *EmailChildRelevance) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
