package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/familyhub/schoolmail-backend/internal/mail"
	"github.com/familyhub/schoolmail-backend/internal/models"
	"github.com/familyhub/schoolmail-backend/internal/repository"
)

// ErrSyncInProgress is re-exported so API handlers can map it without
// importing the repository package.
var ErrSyncInProgress = repository.ErrSyncInProgress

// SyncResult summarizes one account sync run. Skipped counts benign
// duplicates only; persistence failures land in Failed with one entry
// per message in Errors.
type SyncResult struct {
	AccountID     string   `json:"account_id"`
	EmailsFetched int      `json:"emails_fetched"`
	EmailsSaved   int      `json:"emails_saved"`
	EmailsSkipped int      `json:"emails_skipped"`
	EmailsFailed  int      `json:"emails_failed"`
	Errors        []string `json:"errors,omitempty"`
}

// SourceFactory builds a mail adapter for an account, decrypting its
// credentials just-in-time. Injected so tests can substitute fakes.
type SourceFactory interface {
	ForAccount(account *models.EmailAccount) (mail.Source, error)
}

// ClassifyEnqueuer hands a saved email to the classification queue.
// Enqueue must not block; a false return means the queue was full and
// the email stays in the unprocessed backlog for the batch sweep.
type ClassifyEnqueuer interface {
	Enqueue(emailID, userID string) bool
}

// SyncService is the orchestrator: it drives one account through the
// idle -> in_progress -> {success | error} state machine, fetching via
// the provider adapter and persisting through the ingest gate. The
// begin transition is a compare-and-swap, so overlapping sync requests
// for the same account collapse to one run.
type SyncService struct {
	accountRepo repository.AccountRepository
	ingest      *IngestService
	sources     SourceFactory
	classify    ClassifyEnqueuer
	notifier    Notifier
	logger      *slog.Logger
	fetchLimit  int
}

// NewSyncService creates a SyncService.
func NewSyncService(
	accountRepo repository.AccountRepository,
	ingest *IngestService,
	sources SourceFactory,
	classify ClassifyEnqueuer,
	notifier Notifier,
	fetchLimit int,
	logger *slog.Logger,
) *SyncService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if fetchLimit <= 0 {
		fetchLimit = 100
	}
	return &SyncService{
		accountRepo: accountRepo,
		ingest:      ingest,
		sources:     sources,
		classify:    classify,
		notifier:    notifier,
		logger:      logger,
		fetchLimit:  fetchLimit,
	}
}

// SyncAccount runs one sync for the account. It returns
// ErrSyncInProgress without side effects when a run is already active.
// Fetch failures mark the account last_sync_status=error with the
// message preserved for the dashboard; per-message save failures are
// reported on the result but do not fail the run.
func (s *SyncService) SyncAccount(ctx context.Context, accountID string) (*SyncResult, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.BeginSync(ctx, accountID); err != nil {
		return nil, err
	}
	s.notifier.SyncStarted(account.UserID, accountID)

	result, runErr := s.run(ctx, account)
	if runErr != nil {
		if err := s.accountRepo.FinishSyncError(ctx, accountID, runErr.Error()); err != nil {
			s.logger.Error("failed to record sync error",
				slog.String("account_id", accountID),
				slog.Any("error", err))
		}
		s.notifier.SyncFailed(account.UserID, accountID, runErr.Error())
		return nil, runErr
	}

	if err := s.accountRepo.FinishSyncSuccess(ctx, accountID, time.Now()); err != nil {
		return nil, err
	}
	s.notifier.SyncCompleted(account.UserID, accountID, *result)

	s.logger.Info("sync completed",
		slog.String("account_id", accountID),
		slog.Int("fetched", result.EmailsFetched),
		slog.Int("saved", result.EmailsSaved),
		slog.Int("skipped", result.EmailsSkipped),
		slog.Int("failed", result.EmailsFailed))

	return result, nil
}

// run fetches and ingests; the caller owns the status transitions.
func (s *SyncService) run(ctx context.Context, account *models.EmailAccount) (*SyncResult, error) {
	source, err := s.sources.ForAccount(account)
	if err != nil {
		return nil, err
	}

	since := account.FetchSinceDate
	if account.LastSyncAt != nil && account.LastSyncAt.After(since) {
		since = *account.LastSyncAt
	}

	messages, err := source.Fetch(ctx, mail.FetchOptions{Since: since, Limit: s.fetchLimit})
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	result := &SyncResult{AccountID: account.ID, EmailsFetched: len(messages)}
	for i := range messages {
		email, err := s.ingest.SaveEmail(ctx, account, &messages[i], account.UserID)
		if err != nil {
			s.logger.Warn("failed to save message",
				slog.String("account_id", account.ID),
				slog.Any("error", err))
			result.EmailsFailed++
			id := messages[i].MessageID
			if id == "" {
				id = "(unknown message)"
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", id, err.Error()))
			continue
		}
		if email == nil {
			result.EmailsSkipped++
			continue
		}
		result.EmailsSaved++
		if s.classify != nil && !s.classify.Enqueue(email.ID, account.UserID) {
			s.logger.Warn("classification queue full, deferring to batch sweep",
				slog.String("email_id", email.ID))
		}
		s.notifier.SyncProgress(account.UserID, account.ID, result.EmailsFetched, result.EmailsSaved)
	}

	return result, nil
}

// SyncAllAccounts syncs every active account for a user sequentially.
// One account's failure does not stop the sweep; accounts already
// syncing are skipped. The aggregate error lists each failed account.
func (s *SyncService) SyncAllAccounts(ctx context.Context, userID string) ([]SyncResult, error) {
	accounts, err := s.accountRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var results []SyncResult
	var failures []string
	for _, account := range accounts {
		result, err := s.SyncAccount(ctx, account.ID)
		if err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %s", account.ID, err.Error()))
			continue
		}
		results = append(results, *result)
	}

	if len(failures) > 0 {
		return results, fmt.Errorf("sync failed for %d account(s): %s", len(failures), strings.Join(failures, "; "))
	}
	return results, nil
}

// sourceFactory is the production SourceFactory: it decrypts the
// account's credential blob and builds the provider adapter.
type sourceFactory struct {
	cipher *mail.CredentialCipher
	logger *slog.Logger
}

// NewSourceFactory creates the production adapter factory.
func NewSourceFactory(cipher *mail.CredentialCipher, logger *slog.Logger) SourceFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &sourceFactory{cipher: cipher, logger: logger}
}

// ForAccount builds the adapter matching the account's provider.
func (f *sourceFactory) ForAccount(account *models.EmailAccount) (mail.Source, error) {
	switch account.Provider {
	case models.ProviderIMAP:
		creds, err := f.cipher.DecryptIMAPCredentials(account.CredentialsEncrypted)
		if err != nil {
			return nil, err
		}
		return mail.NewIMAPSource(creds, f.logger), nil
	case models.ProviderGmail:
		creds, err := f.cipher.DecryptOAuthCredentials(account.CredentialsEncrypted)
		if err != nil {
			return nil, err
		}
		return mail.NewGmailSource(creds, splitDomains(account.SenderDomains), f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", account.Provider)
	}
}

// splitDomains parses the comma-separated sender domain filter.
func splitDomains(raw string) []string {
	if raw == "" {
		return nil
	}
	var domains []string
	for _, d := range strings.Split(raw, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}
