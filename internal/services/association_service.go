package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/familyhub/schoolmail-backend/internal/ai"
	"github.com/familyhub/schoolmail-backend/internal/models"
	"github.com/familyhub/schoolmail-backend/internal/repository"
)

// eventAssociationConfidence is the fixed confidence recorded on
// email-event links; extraction either produced the event or it did
// not, so there is no graded score to carry.
const eventAssociationConfidence = 0.8

const eventAssociationReasoning = "event extracted from email content"

// Analyzer is the classification boundary the association builder
// depends on. *ai.Client satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req ai.AnalyzeRequest) (*ai.Analysis, error)
}

// AssociationService turns one email into its derived records: the
// analysis fields on the email row, calendar events, action items, and
// the email-event / email-child join records awaiting human
// verification. A malformed classifier response degrades to the safe
// default analysis instead of failing the email.
type AssociationService struct {
	emailRepo    repository.EmailRepository
	childRepo    repository.ChildRepository
	eventRepo    repository.EventRepository
	assocRepo    repository.AssociationRepository
	actionRepo   repository.ActionRepository
	feedbackRepo repository.FeedbackRepository
	analyzer     Analyzer
	notifier     Notifier
	logger       *slog.Logger
}

// NewAssociationService creates an AssociationService.
func NewAssociationService(
	emailRepo repository.EmailRepository,
	childRepo repository.ChildRepository,
	eventRepo repository.EventRepository,
	assocRepo repository.AssociationRepository,
	actionRepo repository.ActionRepository,
	feedbackRepo repository.FeedbackRepository,
	analyzer Analyzer,
	notifier Notifier,
	logger *slog.Logger,
) *AssociationService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssociationService{
		emailRepo:    emailRepo,
		childRepo:    childRepo,
		eventRepo:    eventRepo,
		assocRepo:    assocRepo,
		actionRepo:   actionRepo,
		feedbackRepo: feedbackRepo,
		analyzer:     analyzer,
		notifier:     notifier,
		logger:       logger,
	}
}

// ProcessEmail classifies one email and persists everything derived
// from the result. A schema failure from the classifier substitutes
// the default analysis so the email still leaves the unprocessed
// backlog; transport failures return an error and leave the email
// unprocessed for retry.
func (s *AssociationService) ProcessEmail(ctx context.Context, emailID string) error {
	email, err := s.emailRepo.GetByID(ctx, emailID)
	if err != nil {
		return err
	}

	children, err := s.childRepo.ListByUser(ctx, email.UserID)
	if err != nil {
		return err
	}

	analysis, err := s.analyzer.Analyze(ctx, ai.AnalyzeRequest{
		Subject:    email.Subject,
		FromName:   email.FromName,
		FromAddr:   email.FromAddress,
		ReceivedAt: email.ReceivedAt,
		BodyText:   email.BodyText,
		BodyHTML:   email.BodyHTML,
		Children:   children,
	})
	if err != nil {
		var schemaErr *ai.SchemaError
		if !errors.As(err, &schemaErr) {
			return fmt.Errorf("classifying email %s: %w", emailID, err)
		}
		s.logger.Warn("classifier response did not match schema, using default analysis",
			slog.String("email_id", emailID),
			slog.Any("error", err))
		analysis = ai.DefaultAnalysis()
	}

	if err := s.emailRepo.UpdateAnalysis(ctx, emailID, repository.EmailAnalysisUpdate{
		Category:       models.EmailCategory(analysis.Category),
		Priority:       models.EmailPriority(analysis.Priority),
		ActionRequired: analysis.ActionRequired,
		Confidence:     analysis.ConfidenceScore,
		Summary:        analysis.Summary,
		ProcessedAt:    time.Now(),
	}); err != nil {
		return err
	}

	s.createEvents(ctx, email, analysis.ExtractedEvents)
	s.createChildRelevance(ctx, email, children, analysis)
	s.createActions(ctx, email, analysis.ExtractedActions)

	s.notifier.EmailClassified(email.UserID, emailID, analysis.Category)
	return nil
}

// createEvents persists extracted events and their join records.
// Events land unconfirmed; the join record carries a fixed confidence
// because extraction is binary.
func (s *AssociationService) createEvents(ctx context.Context, email *models.Email, extracted []ai.ExtractedEvent) {
	for _, ev := range extracted {
		if ev.Title == "" {
			continue
		}
		start, allDay, ok := parseEventDate(ev.StartDate)
		if !ok {
			s.logger.Warn("dropping event with unparseable start date",
				slog.String("email_id", email.ID),
				slog.String("start_date", ev.StartDate))
			continue
		}

		event := &models.CalendarEvent{
			UserID:        email.UserID,
			Title:         ev.Title,
			Description:   ev.Description,
			EventType:     models.EventType(ev.EventType),
			StartDate:     start,
			AllDay:        allDay || ev.AllDay,
			Location:      ev.Location,
			Source:        models.EventSourceEmail,
			SourceEmailID: email.ID,
		}
		if end, _, ok := parseEventDate(ev.EndDate); ok {
			event.EndDate = &end
		}

		if err := s.eventRepo.Create(ctx, event); err != nil {
			s.logger.Error("failed to create calendar event",
				slog.String("email_id", email.ID),
				slog.Any("error", err))
			continue
		}

		assoc := &models.EmailEventAssociation{
			EmailID:         email.ID,
			EventID:         event.ID,
			UserID:          email.UserID,
			AssociationType: models.AssociationCreatesEvent,
			AIConfidence:    eventAssociationConfidence,
			AIReasoning:     eventAssociationReasoning,
		}
		if err := s.assocRepo.CreateEventAssociation(ctx, assoc); err != nil {
			s.logger.Error("failed to create event association",
				slog.String("email_id", email.ID),
				slog.String("event_id", event.ID),
				slog.Any("error", err))
		}
	}
}

// createChildRelevance resolves mentioned names against the real
// household, case-insensitively. Names the classifier invented are
// logged and dropped; a join record always points at a real child.
// Relevance rows carry the overall analysis confidence, not the
// per-mention score.
func (s *AssociationService) createChildRelevance(ctx context.Context, email *models.Email, children []models.Child, analysis *ai.Analysis) {
	byName := make(map[string]*models.Child, len(children))
	for i := range children {
		byName[strings.ToLower(children[i].Name)] = &children[i]
	}

	for _, mention := range analysis.ChildMentions {
		child, ok := byName[strings.ToLower(strings.TrimSpace(mention.ChildName))]
		if !ok {
			s.logger.Warn("dropping mention of unknown child",
				slog.String("email_id", email.ID),
				slog.String("child_name", mention.ChildName))
			continue
		}

		rel := &models.EmailChildRelevance{
			EmailID:            email.ID,
			ChildID:            child.ID,
			UserID:             email.UserID,
			RelevanceType:      normalizeRelevance(mention.RelevanceType),
			AIConfidence:       analysis.ConfidenceScore,
			AIReasoning:        mention.Reasoning,
			ExtractedChildName: mention.ChildName,
		}
		if err := s.assocRepo.CreateChildRelevance(ctx, rel); err != nil {
			s.logger.Error("failed to create child relevance",
				slog.String("email_id", email.ID),
				slog.String("child_id", child.ID),
				slog.Any("error", err))
		}
	}
}

// createActions persists extracted action items in one batch.
func (s *AssociationService) createActions(ctx context.Context, email *models.Email, extracted []ai.ExtractedAction) {
	if len(extracted) == 0 {
		return
	}

	actions := make([]models.EmailAction, 0, len(extracted))
	for _, item := range extracted {
		if item.ActionText == "" {
			continue
		}
		action := models.EmailAction{
			EmailID:    email.ID,
			UserID:     email.UserID,
			ActionType: normalizeActionType(item.ActionType),
			ActionText: item.ActionText,
			Priority:   models.EmailPriority(item.Priority),
		}
		if due, _, ok := parseEventDate(item.DueDate); ok {
			action.DueDate = &due
		}
		actions = append(actions, action)
	}

	if err := s.actionRepo.CreateBatch(ctx, actions); err != nil {
		s.logger.Error("failed to create email actions",
			slog.String("email_id", email.ID),
			slog.Any("error", err))
	}
}

// Verify applies a human decision to one association. Accepting sets
// verified, rejecting sets rejected; the two flags are always left
// mutually exclusive.
func (s *AssociationService) Verify(ctx context.Context, id string, kind repository.AssociationKind, accept bool, feedback string) error {
	return s.assocRepo.Verify(ctx, id, kind, accept, feedback)
}

// SubmitFeedback records a user correction to a classification field,
// snapshotting the email's subject and sender so the feedback stays
// useful after the email is gone.
func (s *AssociationService) SubmitFeedback(ctx context.Context, emailID, userID, fieldName, aiValue, userValue, text string) (*models.ClassificationFeedback, error) {
	email, err := s.emailRepo.GetByID(ctx, emailID)
	if err != nil {
		return nil, err
	}

	feedback := &models.ClassificationFeedback{
		EmailID:      emailID,
		UserID:       userID,
		FieldName:    fieldName,
		AIValue:      aiValue,
		UserValue:    userValue,
		FeedbackText: text,
		EmailSubject: email.Subject,
		EmailFrom:    email.FromAddress,
	}
	if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}

// parseEventDate accepts the two date shapes the classifier is told to
// emit. Date-only values are flagged all-day.
func parseEventDate(raw string) (time.Time, bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse("2006-01-02 15:04", raw); err == nil {
		return t, false, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}

func normalizeRelevance(raw string) models.RelevanceType {
	switch models.RelevanceType(raw) {
	case models.RelevancePrimary, models.RelevanceMentioned, models.RelevanceShared, models.RelevanceClassWide:
		return models.RelevanceType(raw)
	}
	return models.RelevanceMentioned
}

func normalizeActionType(raw string) models.ActionType {
	switch models.ActionType(raw) {
	case models.ActionDeadline, models.ActionRSVP, models.ActionPermissionForm,
		models.ActionPayment, models.ActionTask, models.ActionReminder, models.ActionOther:
		return models.ActionType(raw)
	}
	return models.ActionOther
}
