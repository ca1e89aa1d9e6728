package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/familyhub/schoolmail-backend/internal/repository"
)

// defaultBatchSize bounds one drain pass over the unprocessed backlog.
const defaultBatchSize = 50

// BatchResult summarizes one batch classification run.
type BatchResult struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// BatchService drains the unprocessed backlog through the association
// builder with per-item isolation: one email's failure is recorded and
// the batch moves on.
type BatchService struct {
	emailRepo    repository.EmailRepository
	associations *AssociationService
	batchSize    int
	logger       *slog.Logger
}

// NewBatchService creates a BatchService.
func NewBatchService(emailRepo repository.EmailRepository, associations *AssociationService, batchSize int, logger *slog.Logger) *BatchService {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchService{
		emailRepo:    emailRepo,
		associations: associations,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// ProcessBatch classifies the given emails one at a time. Each failure
// is captured as "<email id>: <message>" and never stops the batch.
func (s *BatchService) ProcessBatch(ctx context.Context, emailIDs []string) *BatchResult {
	result := &BatchResult{}
	for _, id := range emailIDs {
		if err := ctx.Err(); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", id, err.Error()))
			continue
		}
		if err := s.associations.ProcessEmail(ctx, id); err != nil {
			s.logger.Warn("batch item failed",
				slog.String("email_id", id),
				slog.Any("error", err))
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", id, err.Error()))
			continue
		}
		result.Processed++
	}
	return result
}

// ProcessUnprocessed classifies up to one batch of the user's
// unprocessed emails, oldest first.
func (s *BatchService) ProcessUnprocessed(ctx context.Context, userID string) (*BatchResult, error) {
	ids, err := s.emailRepo.ListUnprocessed(ctx, userID, s.batchSize)
	if err != nil {
		return nil, err
	}
	return s.ProcessBatch(ctx, ids), nil
}

// ProcessAllUnprocessed loops batches until the backlog is empty or no
// forward progress is possible. Emails that keep failing stay
// unprocessed, so a batch with zero successes stops the loop instead
// of spinning on the same ids.
func (s *BatchService) ProcessAllUnprocessed(ctx context.Context, userID string) (*BatchResult, error) {
	total := &BatchResult{}
	for {
		ids, err := s.emailRepo.ListUnprocessed(ctx, userID, s.batchSize)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		batch := s.ProcessBatch(ctx, ids)
		total.Processed += batch.Processed
		total.Failed += batch.Failed
		total.Errors = append(total.Errors, batch.Errors...)

		if batch.Processed == 0 {
			return total, nil
		}
	}
}

// CountUnprocessed reports the backlog size for the dashboard.
func (s *BatchService) CountUnprocessed(ctx context.Context, userID string) (int64, error) {
	return s.emailRepo.CountUnprocessed(ctx, userID)
}
