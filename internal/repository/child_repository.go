package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/familyhub/schoolmail-backend/internal/models"
	"gorm.io/gorm"
)

// ChildRepository defines data access for household children.
type ChildRepository interface {
	Create(ctx context.Context, child *models.Child) error
	GetByID(ctx context.Context, id string) (*models.Child, error)
	ListByUser(ctx context.Context, userID string) ([]models.Child, error)
}

// childRepository implements ChildRepository using GORM
type childRepository struct {
	db *gorm.DB
}

// NewChildRepository creates a new ChildRepository instance
func NewChildRepository(db *gorm.DB) ChildRepository {
	return &childRepository{db: db}
}

// Create creates a new child record
func (r *childRepository) Create(ctx context.Context, child *models.Child) error {
	result := r.db.WithContext(ctx).Create(child)
	if result.Error != nil {
		return fmt.Errorf("failed to create child: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a child by its ID
func (r *childRepository) GetByID(ctx context.Context, id string) (*models.Child, error) {
	var child models.Child
	result := r.db.WithContext(ctx).First(&child, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get child by ID: %w", result.Error)
	}
	return &child, nil
}

// ListByUser retrieves all children for a user
func (r *childRepository) ListByUser(ctx context.Context, userID string) ([]models.Child, error) {
	var children []models.Child
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&children)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list children: %w", result.Error)
	}
	return children, nil
}
