package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/familyhub/schoolmail-backend/internal/mail"
	"github.com/familyhub/schoolmail-backend/internal/models"
	"github.com/familyhub/schoolmail-backend/internal/repository"
	"github.com/familyhub/schoolmail-backend/internal/storage"
)

// IngestService is the persistence gate: it writes one canonical email
// row per provider message. The dedup check is a read immediately
// before the write, so pagination replays stay silent and cheap.
type IngestService struct {
	emailRepo   repository.EmailRepository
	fileStorage storage.FileStorage
	logger      *slog.Logger
}

// NewIngestService creates a new IngestService.
func NewIngestService(emailRepo repository.EmailRepository, fileStorage storage.FileStorage, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		emailRepo:   emailRepo,
		fileStorage: fileStorage,
		logger:      logger,
	}
}

// SaveEmail persists one parsed message for an account. It returns
// (nil, nil) when the (account, message id) pair already exists; a
// duplicate is a defined outcome, not an error. On first insert the
// attachments are written in the same transaction; payloads under the
// inline limit are stored on the row, larger ones go to file storage.
func (s *IngestService) SaveEmail(ctx context.Context, account *models.EmailAccount, msg *mail.ParsedMessage, userID string) (*models.Email, error) {
	if msg.MessageID == "" {
		return nil, fmt.Errorf("message has no provider message id")
	}

	exists, err := s.emailRepo.ExistsByMessageID(ctx, account.ID, msg.MessageID)
	if err != nil {
		return nil, fmt.Errorf("dedup check failed: %w", err)
	}
	if exists {
		return nil, nil
	}

	receivedAt := msg.Date
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	threadID := msg.InReplyTo
	if threadID == "" {
		threadID = msg.MessageID
	}

	subject := msg.Subject
	if subject == "" {
		subject = "(No Subject)"
	}

	email := &models.Email{
		UserID:         userID,
		EmailAccountID: account.ID,
		MessageID:      msg.MessageID,
		ThreadID:       threadID,
		InReplyTo:      msg.InReplyTo,
		FromAddress:    msg.From.Address,
		FromName:       msg.From.Name,
		Subject:        subject,
		BodyText:       msg.TextBody,
		BodyHTML:       msg.HTMLBody,
		Snippet:        msg.Snippet,
		ReceivedAt:     receivedAt,
		FetchedAt:      time.Now(),
	}
	email.SetToAddresses(msg.To)
	email.SetCcAddresses(msg.Cc)
	email.SetBccAddresses(msg.Bcc)

	attachments, err := s.buildAttachments(msg.Attachments)
	if err != nil {
		return nil, err
	}

	if err := s.emailRepo.CreateWithAttachments(ctx, email, attachments); err != nil {
		return nil, fmt.Errorf("persisting email %s: %w", msg.MessageID, err)
	}

	return email, nil
}

// buildAttachments converts parsed attachments into rows, spilling
// oversized payloads to file storage.
func (s *IngestService) buildAttachments(parsed []mail.ParsedAttachment) ([]models.Attachment, error) {
	if len(parsed) == 0 {
		return nil, nil
	}

	attachments := make([]models.Attachment, 0, len(parsed))
	for _, att := range parsed {
		filename := att.Filename
		if filename == "" {
			filename = "unnamed"
		}
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		row := models.Attachment{
			Filename:    filename,
			ContentType: contentType,
			SizeBytes:   att.Size,
			IsInline:    att.IsInline,
			ContentID:   att.ContentID,
		}

		if att.Size < models.InlineAttachmentLimit {
			row.InlineData = base64.StdEncoding.EncodeToString(att.Content)
		} else if s.fileStorage != nil {
			path, err := s.fileStorage.Save(filename, bytes.NewReader(att.Content))
			if err != nil {
				// Metadata still gets stored; losing one oversized
				// payload should not lose the email.
				s.logger.Warn("failed to store attachment payload",
					slog.String("filename", filename),
					slog.Any("error", err))
			} else {
				row.FilePath = path
			}
		}

		attachments = append(attachments, row)
	}
	return attachments, nil
}
