package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/familyhub/schoolmail-backend/internal/models"
	"gorm.io/gorm"
)

// EmailAnalysisUpdate carries the classification fields written onto an
// email. Applied as one update so re-classification overwrites a
// previous run cleanly.
type EmailAnalysisUpdate struct {
	Category       models.EmailCategory
	Priority       models.EmailPriority
	ActionRequired bool
	Confidence     float64
	Summary        string
	ProcessedAt    time.Time
}

// EmailRepository defines data access for ingested emails.
type EmailRepository interface {
	// ExistsByMessageID reports whether a row with the given dedup key
	// (account id, provider message id) already exists.
	ExistsByMessageID(ctx context.Context, accountID, messageID string) (bool, error)
	CreateWithAttachments(ctx context.Context, email *models.Email, attachments []models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Email, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Email, int64, error)
	ListUnprocessed(ctx context.Context, userID string, limit int) ([]string, error)
	CountUnprocessed(ctx context.Context, userID string) (int64, error)
	UpdateAnalysis(ctx context.Context, id string, update EmailAnalysisUpdate) error
}

// emailRepository implements EmailRepository using GORM
type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new EmailRepository instance
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{db: db}
}

// ExistsByMessageID performs the dedup check with a point lookup.
func (r *emailRepository) ExistsByMessageID(ctx context.Context, accountID, messageID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("email_account_id = ? AND message_id = ?", accountID, messageID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check message existence: %w", result.Error)
	}
	return count > 0, nil
}

// CreateWithAttachments creates an email with its attachments in a transaction
func (r *emailRepository) CreateWithAttachments(ctx context.Context, email *models.Email, attachments []models.Attachment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(email).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateEntry
			}
			return fmt.Errorf("failed to create email: %w", err)
		}

		for i := range attachments {
			attachments[i].EmailID = email.ID
			if err := tx.Create(&attachments[i]).Error; err != nil {
				return fmt.Errorf("failed to create attachment: %w", err)
			}
		}

		return nil
	})
}

// GetByID retrieves an email by its ID with preloaded attachments
func (r *emailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	var email models.Email
	result := r.db.WithContext(ctx).Preload("Attachments").First(&email, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get email by ID: %w", result.Error)
	}
	return &email, nil
}

// ListByUser retrieves emails for a user with pagination, newest first.
func (r *emailRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Email, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Email{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count emails: %w", err)
	}

	var emails []models.Email
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("received_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&emails)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list emails: %w", result.Error)
	}
	return emails, total, nil
}

// ListUnprocessed returns IDs of emails not yet classified
// (ai_processed_at IS NULL), oldest first so backlogs drain in order.
func (r *emailRepository) ListUnprocessed(ctx context.Context, userID string, limit int) ([]string, error) {
	var ids []string
	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("user_id = ? AND ai_processed_at IS NULL", userID).
		Order("received_at ASC").
		Limit(limit).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list unprocessed emails: %w", result.Error)
	}
	return ids, nil
}

// CountUnprocessed counts emails still awaiting classification.
func (r *emailRepository) CountUnprocessed(ctx context.Context, userID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("user_id = ? AND ai_processed_at IS NULL", userID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count unprocessed emails: %w", result.Error)
	}
	return count, nil
}

// UpdateAnalysis writes the classification result onto the email row.
func (r *emailRepository) UpdateAnalysis(ctx context.Context, id string, update EmailAnalysisUpdate) error {
	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ai_category":         update.Category,
			"ai_priority":         update.Priority,
			"ai_action_required":  update.ActionRequired,
			"ai_confidence_score": update.Confidence,
			"ai_summary":          update.Summary,
			"ai_processed_at":     update.ProcessedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update email analysis: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
