package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider identifies the transport used to reach a mailbox.
type Provider string

const (
	ProviderIMAP  Provider = "imap"
	ProviderGmail Provider = "gmail"
)

// SyncStatus is the per-account sync state machine:
// idle -> in_progress -> {success | error}.
type SyncStatus string

const (
	SyncStatusIdle       SyncStatus = "idle"
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusError      SyncStatus = "error"
)

// EmailAccount is one mailbox configuration belonging to a user.
// Credentials are stored encrypted at rest and decrypted just-in-time
// by the mail adapter. Only the sync orchestrator mutates the sync
// status fields.
type EmailAccount struct {
	ID           string   `gorm:"primaryKey;size:36" json:"id"`
	UserID       string   `gorm:"not null;index;size:36" json:"user_id"`
	EmailAddress string   `gorm:"not null;size:255" json:"email_address"`
	DisplayName  string   `gorm:"size:255" json:"display_name,omitempty"`
	Provider     Provider `gorm:"not null;size:20" json:"provider"`

	// Encrypted connection credentials (IMAP password or OAuth2
	// client id/secret/refresh token), AES-256-GCM, base64.
	CredentialsEncrypted string `gorm:"not null" json:"-"`

	// IMAP connection parameters (unused for the gmail provider).
	IMAPHost     string `gorm:"size:255" json:"imap_host,omitempty"`
	IMAPPort     int    `json:"imap_port,omitempty"`
	IMAPUsername string `gorm:"size:255" json:"imap_username,omitempty"`
	UseSSL       bool   `gorm:"default:true" json:"use_ssl"`

	// Gmail sender-domain filter, comma separated. Only messages from
	// these domains are listed by the REST adapter.
	SenderDomains string `gorm:"size:1000" json:"sender_domains,omitempty"`

	IsActive             bool       `gorm:"default:true;index" json:"is_active"`
	SyncFrequencyMinutes int        `gorm:"default:60" json:"sync_frequency_minutes"`
	FetchSinceDate       time.Time  `json:"fetch_since_date"`
	LastSyncAt           *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus       SyncStatus `gorm:"size:20;default:'idle'" json:"last_sync_status"`
	LastSyncError        string     `json:"last_sync_error,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for EmailAccount
func (EmailAccount) TableName() string {
	return "email_accounts"
}

// BeforeCreate assigns a UUID primary key if one was not provided.
func (a *EmailAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
