package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/familyhub/schoolmail-backend/internal/models"
	"gorm.io/gorm"
)

// AccountRepository defines data access for email accounts. The sync
// status fields are only touched through the BeginSync/FinishSync
// methods so the state machine stays consistent.
type AccountRepository interface {
	Create(ctx context.Context, account *models.EmailAccount) error
	GetByID(ctx context.Context, id string) (*models.EmailAccount, error)
	ListActiveByUser(ctx context.Context, userID string) ([]models.EmailAccount, error)

	// BeginSync transitions the account to in_progress. It is a
	// compare-and-swap: if the account is already in_progress the call
	// returns ErrSyncInProgress and nothing changes.
	BeginSync(ctx context.Context, id string) error
	FinishSyncSuccess(ctx context.Context, id string, syncedAt time.Time) error
	FinishSyncError(ctx context.Context, id string, syncErr string) error
}

// accountRepository implements AccountRepository using GORM
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new email account
func (r *accountRepository) Create(ctx context.Context, account *models.EmailAccount) error {
	result := r.db.WithContext(ctx).Create(account)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create account: %w", result.Error)
	}
	return nil
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.EmailAccount, error) {
	var account models.EmailAccount
	result := r.db.WithContext(ctx).First(&account, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", result.Error)
	}
	return &account, nil
}

// ListActiveByUser retrieves all active accounts for a user
func (r *accountRepository) ListActiveByUser(ctx context.Context, userID string) ([]models.EmailAccount, error) {
	var accounts []models.EmailAccount
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", result.Error)
	}
	return accounts, nil
}

// BeginSync marks the account as syncing. The WHERE clause excludes
// rows already in_progress, which makes the transition atomic at the
// row level: a concurrent caller sees RowsAffected == 0.
func (r *accountRepository) BeginSync(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ? AND last_sync_status <> ?", id, models.SyncStatusInProgress).
		Update("last_sync_status", models.SyncStatusInProgress)
	if result.Error != nil {
		return fmt.Errorf("failed to begin sync: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the account does not exist or a sync is running.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.EmailAccount{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to begin sync: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrSyncInProgress
	}
	return nil
}

// FinishSyncSuccess records a successful sync, clearing any previous
// error and advancing last_sync_at.
func (r *accountRepository) FinishSyncSuccess(ctx context.Context, id string, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_status": models.SyncStatusSuccess,
			"last_sync_at":     syncedAt,
			"last_sync_error":  "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finish sync: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishSyncError records a failed sync with the captured error text.
func (r *accountRepository) FinishSyncError(ctx context.Context, id string, syncErr string) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_status": models.SyncStatusError,
			"last_sync_error":  syncErr,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record sync error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
