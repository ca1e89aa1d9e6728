package repository

import (
	"context"
	"fmt"

	"github.com/familyhub/schoolmail-backend/internal/models"
	"gorm.io/gorm"
)

// FeedbackRepository defines data access for classification feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.ClassificationFeedback) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ClassificationFeedback, error)
}

// feedbackRepository implements FeedbackRepository using GORM
type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository creates a new FeedbackRepository instance
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

// Create records one feedback entry
func (r *feedbackRepository) Create(ctx context.Context, feedback *models.ClassificationFeedback) error {
	result := r.db.WithContext(ctx).Create(feedback)
	if result.Error != nil {
		return fmt.Errorf("failed to create classification feedback: %w", result.Error)
	}
	return nil
}

// ListByUser retrieves recent feedback for a user, newest first.
func (r *feedbackRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ClassificationFeedback, error) {
	var items []models.ClassificationFeedback
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&items)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list classification feedback: %w", result.Error)
	}
	return items, nil
}
