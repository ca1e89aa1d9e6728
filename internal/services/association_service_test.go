package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyhub/schoolmail-backend/internal/ai"
	"github.com/familyhub/schoolmail-backend/internal/models"
	"github.com/familyhub/schoolmail-backend/internal/repository"
)

func newAssociationService(env *testEnv, analyzer Analyzer, notifier Notifier) *AssociationService {
	return NewAssociationService(
		env.emailRepo, env.childRepo, env.eventRepo, env.assocRepo,
		env.actionRepo, env.feedbackRepo, analyzer, notifier, nil,
	)
}

func fullAnalysis() *ai.Analysis {
	return &ai.Analysis{
		Category:        string(models.CategoryPermission),
		Priority:        string(models.PriorityHigh),
		ActionRequired:  true,
		ConfidenceScore: 0.92,
		Summary:         "Permission slip due Friday",
		ExtractedEvents: []ai.ExtractedEvent{
			{Title: "Field trip", EventType: "school_event", StartDate: "2026-09-04", Location: "City museum"},
			{Title: "Bus departure", EventType: "school_event", StartDate: "2026-09-04 08:30"},
		},
		ExtractedActions: []ai.ExtractedAction{
			{ActionType: "permission_form", ActionText: "Sign and return the slip", DueDate: "2026-09-03", Priority: "high"},
		},
		ChildMentions: []ai.ChildMention{
			{ChildName: "maya", RelevanceType: "primary", Confidence: 0.9, Reasoning: "addressed to Maya's class"},
			{ChildName: "Unknown Kid", RelevanceType: "primary", Confidence: 0.8},
		},
	}
}

func TestAssociationService_ProcessEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "user-1")
	email := env.seedEmail(t, account, "msg-1", "Field trip")

	child := &models.Child{UserID: "user-1", Name: "Maya", Grade: "4"}
	require.NoError(t, env.childRepo.Create(ctx, child))

	analyzer := &fakeAnalyzer{analysis: fullAnalysis()}
	notifier := &recordingNotifier{}
	svc := newAssociationService(env, analyzer, notifier)

	require.NoError(t, svc.ProcessEmail(ctx, email.ID))

	// Analysis fields land on the email row.
	got, err := env.emailRepo.GetByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPermission, got.AICategory)
	assert.Equal(t, models.PriorityHigh, got.AIPriority)
	assert.True(t, got.AIActionRequired)
	assert.Equal(t, "Permission slip due Friday", got.AISummary)
	require.NotNil(t, got.AIProcessedAt)

	// Extracted events are unconfirmed and trace back to the email.
	events, err := env.eventRepo.ListBySourceEmail(ctx, email.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, models.EventSourceEmail, ev.Source)
		assert.False(t, ev.IsConfirmed)
	}

	// Date-only events are all-day, timed ones are not.
	byTitle := map[string]models.CalendarEvent{}
	for _, ev := range events {
		byTitle[ev.Title] = ev
	}
	assert.True(t, byTitle["Field trip"].AllDay)
	assert.False(t, byTitle["Bus departure"].AllDay)
	assert.Equal(t, 8, byTitle["Bus departure"].StartDate.Hour())

	// Event join records carry the fixed confidence.
	assocs, err := env.assocRepo.ListEventAssociations(ctx, email.ID)
	require.NoError(t, err)
	require.Len(t, assocs, 2)
	for _, a := range assocs {
		assert.Equal(t, models.AssociationCreatesEvent, a.AssociationType)
		assert.InDelta(t, 0.8, a.AIConfidence, 0.001)
		assert.Equal(t, "event extracted from email content", a.AIReasoning)
		assert.False(t, a.IsVerified)
		assert.False(t, a.IsRejected)
	}

	// The lowercase mention resolves to the real child; the invented
	// name is dropped.
	rels, err := env.assocRepo.ListChildRelevance(ctx, email.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, child.ID, rels[0].ChildID)
	assert.Equal(t, models.RelevancePrimary, rels[0].RelevanceType)
	assert.Equal(t, "maya", rels[0].ExtractedChildName)
	// The relevance row carries the overall analysis confidence, not
	// the per-mention score.
	assert.InDelta(t, 0.92, rels[0].AIConfidence, 0.001)

	actions, err := env.actionRepo.ListByEmail(ctx, email.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionPermissionForm, actions[0].ActionType)
	require.NotNil(t, actions[0].DueDate)

	assert.Equal(t, []string{email.ID}, notifier.classified)
}

func TestAssociationService_ProcessEmail_SchemaErrorDegrades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "user-1")
	email := env.seedEmail(t, account, "msg-1", "Garbled")

	analyzer := &fakeAnalyzer{err: &ai.SchemaError{Raw: "not json", Err: errors.New("bad")}}
	svc := newAssociationService(env, analyzer, nil)

	require.NoError(t, svc.ProcessEmail(ctx, email.ID))

	got, err := env.emailRepo.GetByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, got.AICategory)
	assert.Equal(t, models.PriorityMedium, got.AIPriority)
	assert.Equal(t, "Unable to analyze email", got.AISummary)
	require.NotNil(t, got.AIProcessedAt)

	events, err := env.eventRepo.ListBySourceEmail(ctx, email.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAssociationService_ProcessEmail_TransportErrorRetryable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "user-1")
	email := env.seedEmail(t, account, "msg-1", "Timeout")

	analyzer := &fakeAnalyzer{err: errors.New("api status 500")}
	svc := newAssociationService(env, analyzer, nil)

	err := svc.ProcessEmail(ctx, email.ID)
	require.Error(t, err)

	// The email stays in the unprocessed backlog.
	got, err := env.emailRepo.GetByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AIProcessedAt)
}

func TestAssociationService_ProcessEmail_NotFound(t *testing.T) {
	env := newTestEnv(t)
	svc := newAssociationService(env, &fakeAnalyzer{}, nil)

	err := svc.ProcessEmail(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAssociationService_ProcessEmail_DropsUnparseableEventDates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "user-1")
	email := env.seedEmail(t, account, "msg-1", "Vague dates")

	analyzer := &fakeAnalyzer{analysis: &ai.Analysis{
		Category: string(models.CategoryEvent),
		Priority: string(models.PriorityMedium),
		ExtractedEvents: []ai.ExtractedEvent{
			{Title: "Sometime soon", EventType: "school_event", StartDate: "next Tuesday"},
			{Title: "", EventType: "school_event", StartDate: "2026-09-04"},
		},
	}}
	svc := newAssociationService(env, analyzer, nil)

	require.NoError(t, svc.ProcessEmail(ctx, email.ID))

	events, err := env.eventRepo.ListBySourceEmail(ctx, email.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAssociationService_Verify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "user-1")
	email := env.seedEmail(t, account, "msg-1", "Field trip")

	child := &models.Child{UserID: "user-1", Name: "Maya"}
	require.NoError(t, env.childRepo.Create(ctx, child))
	rel := &models.EmailChildRelevance{
		EmailID: email.ID, ChildID: child.ID, UserID: "user-1",
		RelevanceType: models.RelevancePrimary,
	}
	require.NoError(t, env.assocRepo.CreateChildRelevance(ctx, rel))

	svc := newAssociationService(env, &fakeAnalyzer{}, nil)
	require.NoError(t, svc.Verify(ctx, rel.ID, repository.KindChild, false, "not about Maya"))

	rels, err := env.assocRepo.ListChildRelevance(ctx, email.ID)
	require.NoError(t, err)
	assert.True(t, rels[0].IsRejected)
	assert.False(t, rels[0].IsVerified)
}

func TestAssociationService_SubmitFeedback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "user-1")
	email := env.seedEmail(t, account, "msg-1", "Report card")

	svc := newAssociationService(env, &fakeAnalyzer{}, nil)
	feedback, err := svc.SubmitFeedback(ctx, email.ID, "user-1", "category", "other", "grade", "this is a report card")
	require.NoError(t, err)

	assert.Equal(t, "Report card", feedback.EmailSubject)
	assert.Equal(t, "rivera@school.edu", feedback.EmailFrom)
	assert.Equal(t, "grade", feedback.UserValue)

	stored, err := env.feedbackRepo.ListByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestAssociationService_SubmitFeedback_EmailNotFound(t *testing.T) {
	env := newTestEnv(t)
	svc := newAssociationService(env, &fakeAnalyzer{}, nil)

	_, err := svc.SubmitFeedback(context.Background(), "missing", "user-1", "category", "", "grade", "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestParseEventDate(t *testing.T) {
	start, allDay, ok := parseEventDate("2026-09-04")
	require.True(t, ok)
	assert.True(t, allDay)
	assert.Equal(t, time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC), start)

	start, allDay, ok = parseEventDate("2026-09-04 08:30")
	require.True(t, ok)
	assert.False(t, allDay)
	assert.Equal(t, 30, start.Minute())

	_, _, ok = parseEventDate("")
	assert.False(t, ok)

	_, _, ok = parseEventDate("next Tuesday")
	assert.False(t, ok)
}

func TestNormalizeRelevance(t *testing.T) {
	assert.Equal(t, models.RelevancePrimary, normalizeRelevance("primary"))
	assert.Equal(t, models.RelevanceClassWide, normalizeRelevance("class_wide"))
	assert.Equal(t, models.RelevanceMentioned, normalizeRelevance("somewhat related"))
}

func TestNormalizeActionType(t *testing.T) {
	assert.Equal(t, models.ActionRSVP, normalizeActionType("rsvp"))
	assert.Equal(t, models.ActionOther, normalizeActionType("do something"))
}
