package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/familyhub/schoolmail-backend/internal/models"
	"gorm.io/gorm"
)

// EventRepository defines data access for calendar events.
type EventRepository interface {
	Create(ctx context.Context, event *models.CalendarEvent) error
	GetByID(ctx context.Context, id string) (*models.CalendarEvent, error)
	ListBySourceEmail(ctx context.Context, emailID string) ([]models.CalendarEvent, error)
}

// eventRepository implements EventRepository using GORM
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new EventRepository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Create creates a new calendar event
func (r *eventRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	result := r.db.WithContext(ctx).Create(event)
	if result.Error != nil {
		return fmt.Errorf("failed to create calendar event: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a calendar event by its ID
func (r *eventRepository) GetByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	var event models.CalendarEvent
	result := r.db.WithContext(ctx).First(&event, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event by ID: %w", result.Error)
	}
	return &event, nil
}

// ListBySourceEmail retrieves events created from a given email.
func (r *eventRepository) ListBySourceEmail(ctx context.Context, emailID string) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	result := r.db.WithContext(ctx).
		Where("source = ? AND source_email_id = ?", models.EventSourceEmail, emailID).
		Find(&events)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list events by source email: %w", result.Error)
	}
	return events, nil
}
