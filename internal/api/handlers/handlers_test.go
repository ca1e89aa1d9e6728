package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/familyhub/schoolmail-backend/internal/ai"
	"github.com/familyhub/schoolmail-backend/internal/mail"
	"github.com/familyhub/schoolmail-backend/internal/models"
	"github.com/familyhub/schoolmail-backend/internal/repository"
	"github.com/familyhub/schoolmail-backend/internal/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.EmailAccount{},
		&models.Email{},
		&models.Attachment{},
		&models.Child{},
		&models.CalendarEvent{},
		&models.EmailEventAssociation{},
		&models.EmailChildRelevance{},
		&models.EmailAction{},
		&models.ClassificationFeedback{},
	)
	require.NoError(t, err)

	return db
}

func testCipher(t *testing.T) *mail.CredentialCipher {
	t.Helper()
	cipher, err := mail.NewCredentialCipher("handler-test-secret")
	require.NoError(t, err)
	return cipher
}

// newRequestContext builds an echo context for a JSON request carrying
// the forwarded user id.
func newRequestContext(method, target, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func seedAccount(t *testing.T, db *gorm.DB, userID string) *models.EmailAccount {
	t.Helper()
	account := &models.EmailAccount{
		UserID:               userID,
		EmailAddress:         "parent@example.com",
		Provider:             models.ProviderIMAP,
		CredentialsEncrypted: "sealed",
		IsActive:             true,
		FetchSinceDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		LastSyncStatus:       models.SyncStatusIdle,
	}
	require.NoError(t, repository.NewAccountRepository(db).Create(context.Background(), account))
	return account
}

func seedEmail(t *testing.T, db *gorm.DB, account *models.EmailAccount, messageID string) *models.Email {
	t.Helper()
	email := &models.Email{
		UserID:         account.UserID,
		EmailAccountID: account.ID,
		MessageID:      messageID,
		FromAddress:    "rivera@school.edu",
		Subject:        "Field trip",
		ReceivedAt:     time.Now(),
		FetchedAt:      time.Now(),
	}
	require.NoError(t, repository.NewEmailRepository(db).CreateWithAttachments(context.Background(), email, nil))
	return email
}

// stubAnalyzer returns the default analysis for every email.
type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(ctx context.Context, req ai.AnalyzeRequest) (*ai.Analysis, error) {
	return ai.DefaultAnalysis(), nil
}

// stubSourceFactory serves a fixed message list for every account.
type stubSourceFactory struct {
	messages []mail.ParsedMessage
	err      error
}

func (f *stubSourceFactory) ForAccount(account *models.EmailAccount) (mail.Source, error) {
	if f.err != nil {
		return nil, f.err
	}
	return stubSource(f.messages), nil
}

type stubSource []mail.ParsedMessage

func (s stubSource) Fetch(ctx context.Context, opts mail.FetchOptions) ([]mail.ParsedMessage, error) {
	return s, nil
}

// newTestServices wires real repositories to stub adapters.
func newTestServices(db *gorm.DB, factory services.SourceFactory) (*services.SyncService, *services.BatchService, *services.AssociationService) {
	emailRepo := repository.NewEmailRepository(db)
	associations := services.NewAssociationService(
		emailRepo,
		repository.NewChildRepository(db),
		repository.NewEventRepository(db),
		repository.NewAssociationRepository(db),
		repository.NewActionRepository(db),
		repository.NewFeedbackRepository(db),
		stubAnalyzer{}, nil, nil,
	)
	ingest := services.NewIngestService(emailRepo, nil, nil)
	sync := services.NewSyncService(repository.NewAccountRepository(db), ingest, factory, nil, nil, 100, nil)
	batch := services.NewBatchService(emailRepo, associations, 50, nil)
	return sync, batch, associations
}
