package models

// InlineAttachmentLimit is the payload size below which attachment
// content is stored inline on the row. Larger payloads go to file
// storage and only the path is recorded.
const InlineAttachmentLimit = 100 * 1000

// Attachment represents a file attached to an ingested email.
// Created alongside the parent email, immutable thereafter.
type Attachment struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	EmailID     string `gorm:"not null;index;size:36" json:"email_id"`
	Filename    string `gorm:"size:255" json:"filename"`
	ContentType string `gorm:"size:100" json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`

	// InlineData holds base64 payloads below InlineAttachmentLimit.
	// FilePath references file storage for everything larger.
	InlineData string `json:"-"`
	FilePath   string `gorm:"size:500" json:"file_path,omitempty"`

	IsInline  bool   `gorm:"default:false" json:"is_inline"`
	ContentID string `gorm:"size:255" json:"content_id,omitempty"`

	// Relationships
	Email Email `gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Attachment
func (Attachment) TableName() string {
	return "email_attachments"
}
