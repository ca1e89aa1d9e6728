package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/familyhub/schoolmail-backend/internal/models"
)

func seedEventAssociation(db *gorm.DB, t *testing.T) *models.EmailEventAssociation {
	t.Helper()
	ctx := context.Background()

	email := newTestEmail(db, t, "user-1", "<event@school.edu>", time.Now())
	require.NoError(t, NewEmailRepository(db).CreateWithAttachments(ctx, email, nil))

	event := &models.CalendarEvent{
		UserID:        "user-1",
		Title:         "Sports day",
		EventType:     models.EventSports,
		StartDate:     time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC),
		Source:        models.EventSourceEmail,
		SourceEmailID: email.ID,
	}
	require.NoError(t, NewEventRepository(db).Create(ctx, event))

	assoc := &models.EmailEventAssociation{
		EmailID:         email.ID,
		EventID:         event.ID,
		UserID:          "user-1",
		AssociationType: models.AssociationCreatesEvent,
		AIConfidence:    0.8,
		AIReasoning:     "event extracted from email content",
	}
	require.NoError(t, NewAssociationRepository(db).CreateEventAssociation(ctx, assoc))
	return assoc
}

func seedChildRelevance(db *gorm.DB, t *testing.T) *models.EmailChildRelevance {
	t.Helper()
	ctx := context.Background()

	email := newTestEmail(db, t, "user-1", "<child@school.edu>", time.Now())
	require.NoError(t, NewEmailRepository(db).CreateWithAttachments(ctx, email, nil))

	child := &models.Child{UserID: "user-1", Name: "Maya", Grade: "4"}
	require.NoError(t, NewChildRepository(db).Create(ctx, child))

	rel := &models.EmailChildRelevance{
		EmailID:            email.ID,
		ChildID:            child.ID,
		UserID:             "user-1",
		RelevanceType:      models.RelevancePrimary,
		AIConfidence:       0.9,
		ExtractedChildName: "Maya",
	}
	require.NoError(t, NewAssociationRepository(db).CreateChildRelevance(ctx, rel))
	return rel
}

func TestAssociationRepository_ListEventAssociations(t *testing.T) {
	db := newTestDB(t)
	assoc := seedEventAssociation(db, t)

	assocs, err := NewAssociationRepository(db).ListEventAssociations(context.Background(), assoc.EmailID)
	require.NoError(t, err)
	require.Len(t, assocs, 1)
	assert.Equal(t, models.AssociationCreatesEvent, assocs[0].AssociationType)
	assert.InDelta(t, 0.8, assocs[0].AIConfidence, 0.001)
	assert.False(t, assocs[0].IsVerified)
	assert.False(t, assocs[0].IsRejected)
}

func TestAssociationRepository_ListChildRelevance(t *testing.T) {
	db := newTestDB(t)
	rel := seedChildRelevance(db, t)

	rels, err := NewAssociationRepository(db).ListChildRelevance(context.Background(), rel.EmailID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, models.RelevancePrimary, rels[0].RelevanceType)
	assert.Equal(t, "Maya", rels[0].ExtractedChildName)
}

func TestAssociationRepository_Verify_Accept(t *testing.T) {
	db := newTestDB(t)
	repo := NewAssociationRepository(db)
	ctx := context.Background()
	assoc := seedEventAssociation(db, t)

	require.NoError(t, repo.Verify(ctx, assoc.ID, KindEvent, true, "looks right"))

	assocs, err := repo.ListEventAssociations(ctx, assoc.EmailID)
	require.NoError(t, err)
	require.Len(t, assocs, 1)
	assert.True(t, assocs[0].IsVerified)
	assert.False(t, assocs[0].IsRejected)
	assert.Equal(t, "looks right", assocs[0].UserFeedback)
}

func TestAssociationRepository_Verify_Reject(t *testing.T) {
	db := newTestDB(t)
	repo := NewAssociationRepository(db)
	ctx := context.Background()
	rel := seedChildRelevance(db, t)

	require.NoError(t, repo.Verify(ctx, rel.ID, KindChild, false, "wrong child"))

	rels, err := repo.ListChildRelevance(ctx, rel.EmailID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.False(t, rels[0].IsVerified)
	assert.True(t, rels[0].IsRejected)
	assert.Equal(t, "wrong child", rels[0].UserFeedback)
}

func TestAssociationRepository_Verify_Overrides(t *testing.T) {
	db := newTestDB(t)
	repo := NewAssociationRepository(db)
	ctx := context.Background()
	assoc := seedEventAssociation(db, t)

	require.NoError(t, repo.Verify(ctx, assoc.ID, KindEvent, false, ""))
	require.NoError(t, repo.Verify(ctx, assoc.ID, KindEvent, true, ""))

	assocs, err := repo.ListEventAssociations(ctx, assoc.EmailID)
	require.NoError(t, err)
	assert.True(t, assocs[0].IsVerified)
	assert.False(t, assocs[0].IsRejected)
}

func TestAssociationRepository_Verify_Idempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewAssociationRepository(db)
	ctx := context.Background()
	assoc := seedEventAssociation(db, t)

	require.NoError(t, repo.Verify(ctx, assoc.ID, KindEvent, true, ""))
	require.NoError(t, repo.Verify(ctx, assoc.ID, KindEvent, true, ""))
}

func TestAssociationRepository_Verify_NotFound(t *testing.T) {
	repo := NewAssociationRepository(newTestDB(t))

	err := repo.Verify(context.Background(), "missing", KindEvent, true, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssociationRepository_Verify_UnknownKind(t *testing.T) {
	db := newTestDB(t)
	repo := NewAssociationRepository(db)
	assoc := seedEventAssociation(db, t)

	err := repo.Verify(context.Background(), assoc.ID, AssociationKind("bogus"), true, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
