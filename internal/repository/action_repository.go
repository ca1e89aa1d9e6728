package repository

import (
	"context"
	"fmt"

	"github.com/familyhub/schoolmail-backend/internal/models"
	"gorm.io/gorm"
)

// ActionRepository defines data access for extracted action items.
type ActionRepository interface {
	CreateBatch(ctx context.Context, actions []models.EmailAction) error
	ListByEmail(ctx context.Context, emailID string) ([]models.EmailAction, error)
	MarkCompleted(ctx context.Context, id string) error
}

// actionRepository implements ActionRepository using GORM
type actionRepository struct {
	db *gorm.DB
}

// NewActionRepository creates a new ActionRepository instance
func NewActionRepository(db *gorm.DB) ActionRepository {
	return &actionRepository{db: db}
}

// CreateBatch inserts a set of action items extracted from one email.
func (r *actionRepository) CreateBatch(ctx context.Context, actions []models.EmailAction) error {
	if len(actions) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Create(&actions)
	if result.Error != nil {
		return fmt.Errorf("failed to create email actions: %w", result.Error)
	}
	return nil
}

// ListByEmail retrieves action items for an email
func (r *actionRepository) ListByEmail(ctx context.Context, emailID string) ([]models.EmailAction, error) {
	var actions []models.EmailAction
	result := r.db.WithContext(ctx).Where("email_id = ?", emailID).Order("due_date ASC").Find(&actions)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list email actions: %w", result.Error)
	}
	return actions, nil
}

// MarkCompleted flags an action item as done.
func (r *actionRepository) MarkCompleted(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailAction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark action completed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
