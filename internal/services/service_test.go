package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/familyhub/schoolmail-backend/internal/ai"
	"github.com/familyhub/schoolmail-backend/internal/mail"
	"github.com/familyhub/schoolmail-backend/internal/models"
	"github.com/familyhub/schoolmail-backend/internal/repository"
)

// testEnv bundles the real repositories over an in-memory database
// with the fakes the services are wired against.
type testEnv struct {
	db           *gorm.DB
	accountRepo  repository.AccountRepository
	emailRepo    repository.EmailRepository
	childRepo    repository.ChildRepository
	eventRepo    repository.EventRepository
	assocRepo    repository.AssociationRepository
	actionRepo   repository.ActionRepository
	feedbackRepo repository.FeedbackRepository
}

func newTestEnv(t *testing.T) *testEnv {
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

	return &testEnv{
		db:           db,
		accountRepo:  repository.NewAccountRepository(db),
		emailRepo:    repository.NewEmailRepository(db),
		childRepo:    repository.NewChildRepository(db),
		eventRepo:    repository.NewEventRepository(db),
		assocRepo:    repository.NewAssociationRepository(db),
		actionRepo:   repository.NewActionRepository(db),
		feedbackRepo: repository.NewFeedbackRepository(db),
	}
}

func (e *testEnv) seedAccount(t *testing.T, userID string) *models.EmailAccount {
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
	require.NoError(t, e.accountRepo.Create(context.Background(), account))
	return account
}

func (e *testEnv) seedEmail(t *testing.T, account *models.EmailAccount, messageID, subject string) *models.Email {
	t.Helper()
	email := &models.Email{
		UserID:         account.UserID,
		EmailAccountID: account.ID,
		MessageID:      messageID,
		FromAddress:    "rivera@school.edu",
		FromName:       "Ms. Rivera",
		Subject:        subject,
		BodyText:       "Body of " + subject,
		ReceivedAt:     time.Now(),
		FetchedAt:      time.Now(),
	}
	require.NoError(t, e.emailRepo.CreateWithAttachments(context.Background(), email, nil))
	return email
}

// fakeAnalyzer returns a canned analysis, or errors keyed by subject.
type fakeAnalyzer struct {
	mu         sync.Mutex
	analysis   *ai.Analysis
	err        error
	failUntil  int
	bySubject  map[string]error
	calls      int
	lastPrompt ai.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req ai.AnalyzeRequest) (*ai.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt = req

	if err, ok := f.bySubject[req.Subject]; ok {
		return nil, err
	}
	if f.failUntil > 0 && f.calls <= f.failUntil {
		return nil, errors.New("transient failure")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.analysis != nil {
		return f.analysis, nil
	}
	return ai.DefaultAnalysis(), nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSource yields canned messages and records the fetch options.
type fakeSource struct {
	messages []mail.ParsedMessage
	err      error
	lastOpts mail.FetchOptions
}

func (f *fakeSource) Fetch(ctx context.Context, opts mail.FetchOptions) ([]mail.ParsedMessage, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

// fakeSourceFactory returns a fixed source for every account.
type fakeSourceFactory struct {
	source mail.Source
	err    error
}

func (f *fakeSourceFactory) ForAccount(account *models.EmailAccount) (mail.Source, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.source, nil
}

// fakeEnqueuer records enqueued email ids.
type fakeEnqueuer struct {
	mu       sync.Mutex
	accept   bool
	enqueued []string
}

func (f *fakeEnqueuer) Enqueue(emailID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, emailID)
	return f.accept
}

func (f *fakeEnqueuer) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.enqueued...)
}

// recordingNotifier captures every published event.
type recordingNotifier struct {
	mu         sync.Mutex
	started    []string
	progress   int
	completed  []SyncResult
	failed     []string
	classified []string
}

func (n *recordingNotifier) SyncStarted(userID, accountID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = append(n.started, accountID)
}

func (n *recordingNotifier) SyncProgress(userID, accountID string, fetched, saved int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress++
}

func (n *recordingNotifier) SyncCompleted(userID, accountID string, result SyncResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, result)
}

func (n *recordingNotifier) SyncFailed(userID, accountID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, message)
}

func (n *recordingNotifier) EmailClassified(userID, emailID, category string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.classified = append(n.classified, emailID)
}

// fakeFileStorage records saves in memory.
type fakeFileStorage struct {
	saveErr error
	saved   []string
}

func (f *fakeFileStorage) Save(filename string, content io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, filename)
	return "stored/" + filename, nil
}

func (f *fakeFileStorage) Get(filePath string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeFileStorage) Delete(filePath string) error { return nil }
