package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyhub/schoolmail-backend/internal/models"
	"github.com/familyhub/schoolmail-backend/internal/repository"
)

func TestEmailHandler_List(t *testing.T) {
	db := setupTestDB(t)
	account := seedAccount(t, db, "user-1")
	seedEmail(t, db, account, "msg-1")
	seedEmail(t, db, account, "msg-2")

	handler := NewEmailHandler(
		repository.NewEmailRepository(db),
		repository.NewEventRepository(db),
		repository.NewActionRepository(db),
	)

	c, rec := newRequestContext(http.MethodGet, "/api/emails?limit=1", "", "user-1")
	require.NoError(t, handler.List(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
	assert.Contains(t, rec.Body.String(), `"limit":1`)
}

func TestEmailHandler_List_RequiresUser(t *testing.T) {
	db := setupTestDB(t)
	handler := NewEmailHandler(
		repository.NewEmailRepository(db),
		repository.NewEventRepository(db),
		repository.NewActionRepository(db),
	)

	c, rec := newRequestContext(http.MethodGet, "/api/emails", "", "")
	require.NoError(t, handler.List(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmailHandler_Get_NotFound(t *testing.T) {
	db := setupTestDB(t)
	handler := NewEmailHandler(
		repository.NewEmailRepository(db),
		repository.NewEventRepository(db),
		repository.NewActionRepository(db),
	)

	c, rec := newRequestContext(http.MethodGet, "/api/emails/missing", "", "user-1")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	require.NoError(t, handler.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmailHandler_ListEvents(t *testing.T) {
	db := setupTestDB(t)
	account := seedAccount(t, db, "user-1")
	email := seedEmail(t, db, account, "msg-1")

	eventRepo := repository.NewEventRepository(db)
	require.NoError(t, eventRepo.Create(context.Background(), &models.CalendarEvent{
		UserID: "user-1", Title: "Sports day",
		StartDate: email.ReceivedAt, Source: models.EventSourceEmail, SourceEmailID: email.ID,
	}))

	handler := NewEmailHandler(repository.NewEmailRepository(db), eventRepo, repository.NewActionRepository(db))

	c, rec := newRequestContext(http.MethodGet, "/api/emails/"+email.ID+"/events", "", "user-1")
	c.SetParamNames("id")
	c.SetParamValues(email.ID)

	require.NoError(t, handler.ListEvents(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sports day")
}

func TestEmailHandler_ListActions(t *testing.T) {
	db := setupTestDB(t)
	account := seedAccount(t, db, "user-1")
	email := seedEmail(t, db, account, "msg-1")

	actionRepo := repository.NewActionRepository(db)
	require.NoError(t, actionRepo.CreateBatch(context.Background(), []models.EmailAction{
		{EmailID: email.ID, UserID: "user-1", ActionType: models.ActionPermissionForm, ActionText: "Sign the slip", Priority: models.PriorityHigh},
	}))

	handler := NewEmailHandler(repository.NewEmailRepository(db), repository.NewEventRepository(db), actionRepo)

	c, rec := newRequestContext(http.MethodGet, "/api/emails/"+email.ID+"/actions", "", "user-1")
	c.SetParamNames("id")
	c.SetParamValues(email.ID)

	require.NoError(t, handler.ListActions(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign the slip")
}

func TestEmailHandler_CompleteAction(t *testing.T) {
	db := setupTestDB(t)
	account := seedAccount(t, db, "user-1")
	email := seedEmail(t, db, account, "msg-1")

	actionRepo := repository.NewActionRepository(db)
	actions := []models.EmailAction{
		{EmailID: email.ID, UserID: "user-1", ActionType: models.ActionTask, ActionText: "Pack kit", Priority: models.PriorityLow},
	}
	require.NoError(t, actionRepo.CreateBatch(context.Background(), actions))

	handler := NewEmailHandler(
		repository.NewEmailRepository(db),
		repository.NewEventRepository(db),
		actionRepo,
	)

	c, rec := newRequestContext(http.MethodPatch, "/api/actions/"+actions[0].ID+"/complete", "", "user-1")
	c.SetParamNames("id")
	c.SetParamValues(actions[0].ID)

	require.NoError(t, handler.CompleteAction(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	stored, err := actionRepo.ListByEmail(context.Background(), email.ID)
	require.NoError(t, err)
	assert.True(t, stored[0].IsCompleted)
}

func TestEmailHandler_CompleteAction_NotFound(t *testing.T) {
	db := setupTestDB(t)
	handler := NewEmailHandler(
		repository.NewEmailRepository(db),
		repository.NewEventRepository(db),
		repository.NewActionRepository(db),
	)

	c, rec := newRequestContext(http.MethodPatch, "/api/actions/missing/complete", "", "user-1")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	require.NoError(t, handler.CompleteAction(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChildHandler_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	handler := NewChildHandler(repository.NewChildRepository(db))

	c, rec := newRequestContext(http.MethodPost, "/api/children",
		`{"name": "Maya", "grade": "4"}`, "user-1")
	require.NoError(t, handler.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	children, err := repository.NewChildRepository(db).ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Maya", children[0].Name)
}

func TestChildHandler_Create_RequiresName(t *testing.T) {
	db := setupTestDB(t)
	handler := NewChildHandler(repository.NewChildRepository(db))

	c, rec := newRequestContext(http.MethodPost, "/api/children", `{"grade": "4"}`, "user-1")
	require.NoError(t, handler.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChildHandler_Get_NotFound(t *testing.T) {
	db := setupTestDB(t)
	handler := NewChildHandler(repository.NewChildRepository(db))

	c, rec := newRequestContext(http.MethodGet, "/api/children/missing", "", "user-1")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	require.NoError(t, handler.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
