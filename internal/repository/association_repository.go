package repository

import (
	"context"
	"fmt"

	"github.com/familyhub/schoolmail-backend/internal/models"
	"gorm.io/gorm"
)

// AssociationKind selects which join table a verification targets.
type AssociationKind string

const (
	KindEvent AssociationKind = "event"
	KindChild AssociationKind = "child"
)

// AssociationRepository defines data access for the email-event and
// email-child join records. Verification is the only mutation after
// creation; the classifier never touches the tri-state.
type AssociationRepository interface {
	CreateEventAssociation(ctx context.Context, assoc *models.EmailEventAssociation) error
	CreateChildRelevance(ctx context.Context, rel *models.EmailChildRelevance) error
	ListEventAssociations(ctx context.Context, emailID string) ([]models.EmailEventAssociation, error)
	ListChildRelevance(ctx context.Context, emailID string) ([]models.EmailChildRelevance, error)

	// Verify flips the tri-state: accept=true sets verified, accept=false
	// sets rejected. Repeating the same call is a no-op beyond updating
	// the feedback text.
	Verify(ctx context.Context, id string, kind AssociationKind, accept bool, feedback string) error
}

// associationRepository implements AssociationRepository using GORM
type associationRepository struct {
	db *gorm.DB
}

// NewAssociationRepository creates a new AssociationRepository instance
func NewAssociationRepository(db *gorm.DB) AssociationRepository {
	return &associationRepository{db: db}
}

// CreateEventAssociation creates an email-event join record
func (r *associationRepository) CreateEventAssociation(ctx context.Context, assoc *models.EmailEventAssociation) error {
	result := r.db.WithContext(ctx).Create(assoc)
	if result.Error != nil {
		return fmt.Errorf("failed to create event association: %w", result.Error)
	}
	return nil
}

// CreateChildRelevance creates an email-child join record
func (r *associationRepository) CreateChildRelevance(ctx context.Context, rel *models.EmailChildRelevance) error {
	result := r.db.WithContext(ctx).Create(rel)
	if result.Error != nil {
		return fmt.Errorf("failed to create child relevance: %w", result.Error)
	}
	return nil
}

// ListEventAssociations retrieves event associations for an email
func (r *associationRepository) ListEventAssociations(ctx context.Context, emailID string) ([]models.EmailEventAssociation, error) {
	var assocs []models.EmailEventAssociation
	result := r.db.WithContext(ctx).Where("email_id = ?", emailID).Find(&assocs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list event associations: %w", result.Error)
	}
	return assocs, nil
}

// ListChildRelevance retrieves child relevance records for an email
func (r *associationRepository) ListChildRelevance(ctx context.Context, emailID string) ([]models.EmailChildRelevance, error) {
	var rels []models.EmailChildRelevance
	result := r.db.WithContext(ctx).Where("email_id = ?", emailID).Find(&rels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list child relevance: %w", result.Error)
	}
	return rels, nil
}

// Verify updates the verification tri-state on the selected join table.
func (r *associationRepository) Verify(ctx context.Context, id string, kind AssociationKind, accept bool, feedback string) error {
	updates := map[string]interface{}{
		"is_verified": accept,
		"is_rejected": !accept,
	}
	if feedback != "" {
		updates["user_feedback"] = feedback
	}

	var result *gorm.DB
	switch kind {
	case KindEvent:
		result = r.db.WithContext(ctx).Model(&models.EmailEventAssociation{}).Where("id = ?", id).Updates(updates)
	case KindChild:
		result = r.db.WithContext(ctx).Model(&models.EmailChildRelevance{}).Where("id = ?", id).Updates(updates)
	default:
		return fmt.Errorf("%w: unknown association kind %q", ErrInvalidInput, kind)
	}

	if result.Error != nil {
		return fmt.Errorf("failed to verify association: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// GORM skips no-op updates, so distinguish missing rows from
		// repeated identical verifications.
		if !r.exists(ctx, id, kind) {
			return ErrNotFound
		}
	}
	return nil
}

func (r *associationRepository) exists(ctx context.Context, id string, kind AssociationKind) bool {
	var count int64
	switch kind {
	case KindEvent:
		r.db.WithContext(ctx).Model(&models.EmailEventAssociation{}).Where("id = ?", id).Count(&count)
	case KindChild:
		r.db.WithContext(ctx).Model(&models.EmailChildRelevance{}).Where("id = ?", id).Count(&count)
	}
	return count > 0
}
