package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventType classifies an extracted calendar event.
type EventType string

const (
	EventAssignment  EventType = "assignment"
	EventTest        EventType = "test"
	EventSchoolEvent EventType = "school_event"
	EventSports      EventType = "sports"
	EventMeeting     EventType = "meeting"
	EventHoliday     EventType = "holiday"
	EventDeadline    EventType = "deadline"
	EventOther       EventType = "other"
)

// EventSourceEmail marks events created by the association builder
// from classified email content.
const EventSourceEmail = "email"

// CalendarEvent is a calendar entry. Events created from email start
// unconfirmed; a person confirms them through the verification flow.
type CalendarEvent struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;index;size:36" json:"user_id"`

	Title       string    `gorm:"not null;size:500" json:"title"`
	Description string    `json:"description,omitempty"`
	EventType   EventType `gorm:"size:30" json:"event_type,omitempty"`

	StartDate time.Time  `gorm:"not null;index" json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	AllDay    bool       `gorm:"default:false" json:"all_day"`
	Location  string     `gorm:"size:500" json:"location,omitempty"`

	Source        string `gorm:"size:20;default:'manual'" json:"source"`
	SourceEmailID string `gorm:"size:36;index" json:"source_email_id,omitempty"`

	IsConfirmed bool `gorm:"default:false" json:"is_confirmed"`
	IsCancelled bool `gorm:"default:false" json:"is_cancelled"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for CalendarEvent
func (CalendarEvent) TableName() string {
	return "calendar_events"
}

// BeforeCreate assigns a UUID primary key if one was not provided.
func (e *CalendarEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
