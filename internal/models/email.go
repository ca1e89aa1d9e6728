package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailCategory is the AI-assigned category of a school email.
type EmailCategory string

const (
	CategorySchoolNotice   EmailCategory = "school_notice"
	CategoryHomework       EmailCategory = "homework"
	CategoryEvent          EmailCategory = "event"
	CategoryPermission     EmailCategory = "permission"
	CategoryGrade          EmailCategory = "grade"
	CategoryBehavior       EmailCategory = "behavior"
	CategorySports         EmailCategory = "sports"
	CategoryTransportation EmailCategory = "transportation"
	CategoryFundraising    EmailCategory = "fundraising"
	CategoryOther          EmailCategory = "other"
)

// EmailPriority is the AI-assigned priority of an email or action.
type EmailPriority string

const (
	PriorityHigh   EmailPriority = "high"
	PriorityMedium EmailPriority = "medium"
	PriorityLow    EmailPriority = "low"
)

// Email is the canonical record of one ingested message. The pair
// (email_account_id, message_id) is the dedup key: re-ingesting the
// same provider message is a silent no-op. The ai_* fields are the
// only fields mutated after insert, exactly once per classification
// run; AIProcessedAt stays nil until classification succeeds.
type Email struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	UserID         string `gorm:"not null;index;size:36" json:"user_id"`
	EmailAccountID string `gorm:"not null;size:36;uniqueIndex:idx_account_message" json:"email_account_id"`

	MessageID string `gorm:"not null;size:512;uniqueIndex:idx_account_message" json:"message_id"`
	ThreadID  string `gorm:"size:512" json:"thread_id,omitempty"`
	InReplyTo string `gorm:"size:512" json:"in_reply_to,omitempty"`

	FromAddress string `gorm:"not null;size:255" json:"from_address"`
	FromName    string `gorm:"size:255" json:"from_name,omitempty"`
	// Address lists stored as JSON arrays.
	ToAddresses  string `json:"-"`
	CcAddresses  string `json:"-"`
	BccAddresses string `json:"-"`
	Subject      string `gorm:"size:1000" json:"subject"`

	BodyText string `json:"body_text,omitempty"`
	BodyHTML string `json:"body_html,omitempty"`
	Snippet  string `gorm:"size:255" json:"snippet,omitempty"`

	// AI analysis, written by the association builder. Column names are
	// pinned: the default naming splits the AI prefix before I-starting
	// field names, and the repository queries these columns by name.
	AICategory        EmailCategory `gorm:"column:ai_category;size:30" json:"ai_category,omitempty"`
	AIPriority        EmailPriority `gorm:"column:ai_priority;size:10" json:"ai_priority,omitempty"`
	AIActionRequired  bool          `gorm:"column:ai_action_required" json:"ai_action_required"`
	AIConfidenceScore float64       `gorm:"column:ai_confidence_score" json:"ai_confidence_score"`
	AISummary         string        `gorm:"column:ai_summary" json:"ai_summary,omitempty"`
	AIProcessedAt     *time.Time    `gorm:"column:ai_processed_at;index" json:"ai_processed_at,omitempty"`

	ReceivedAt time.Time `gorm:"not null;index" json:"received_at"`
	FetchedAt  time.Time `gorm:"not null" json:"fetched_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Account     EmailAccount `gorm:"foreignKey:EmailAccountID;constraint:OnDelete:CASCADE" json:"-"`
	Attachments []Attachment `gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// TableName returns the table name for Email
func (Email) TableName() string {
	return "emails"
}

// BeforeCreate assigns a UUID primary key if one was not provided.
func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// SetToAddresses serializes the recipient list.
func (e *Email) SetToAddresses(addrs []string) {
	e.ToAddresses = marshalAddresses(addrs)
}

// SetCcAddresses serializes the CC list.
func (e *Email) SetCcAddresses(addrs []string) {
	e.CcAddresses = marshalAddresses(addrs)
}

// SetBccAddresses serializes the BCC list.
func (e *Email) SetBccAddresses(addrs []string) {
	e.BccAddresses = marshalAddresses(addrs)
}

// GetToAddresses deserializes the recipient list.
func (e *Email) GetToAddresses() []string {
	return unmarshalAddresses(e.ToAddresses)
}

func marshalAddresses(addrs []string) string {
	if len(addrs) == 0 {
		return "[]"
	}
	data, err := json.Marshal(addrs)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalAddresses(raw string) []string {
	if raw == "" {
		return nil
	}
	var addrs []string
	if err := json.Unmarshal([]byte(raw), &addrs); err != nil {
		return nil
	}
	return addrs
}
