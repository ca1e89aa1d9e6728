package handlers

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/schoolmail-backend/internal/api/response"
	"github.com/familyhub/schoolmail-backend/internal/repository"
	"github.com/familyhub/schoolmail-backend/internal/validator"
)

// EmailHandler handles ingested email HTTP requests
type EmailHandler struct {
	emailRepo  repository.EmailRepository
	eventRepo  repository.EventRepository
	actionRepo repository.ActionRepository
}

// NewEmailHandler creates a new EmailHandler
func NewEmailHandler(emailRepo repository.EmailRepository, eventRepo repository.EventRepository, actionRepo repository.ActionRepository) *EmailHandler {
	return &EmailHandler{
		emailRepo:  emailRepo,
		eventRepo:  eventRepo,
		actionRepo: actionRepo,
	}
}

// List handles GET /api/emails
func (h *EmailHandler) List(c echo.Context) error {
	userID := currentUserID(c)
	if userID == "" {
		return response.BadRequest(c, "user id is required")
	}

	limit := validator.DefaultLimit
	offset := 0
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	if o := c.QueryParam("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil {
			offset = parsed
		}
	}
	limit, offset = validator.ValidatePagination(limit, offset)

	emails, total, err := h.emailRepo.ListByUser(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list emails")
	}

	return response.Paginated(c, emails, total, limit, offset)
}

// Get handles GET /api/emails/:id
func (h *EmailHandler) Get(c echo.Context) error {
	email, err := h.emailRepo.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "email not found")
		}
		return response.InternalError(c, "failed to get email")
	}

	return response.Success(c, email)
}

// ListEvents handles GET /api/emails/:id/events
func (h *EmailHandler) ListEvents(c echo.Context) error {
	events, err := h.eventRepo.ListBySourceEmail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.InternalError(c, "failed to list events")
	}

	return response.Success(c, events)
}

// ListActions handles GET /api/emails/:id/actions
func (h *EmailHandler) ListActions(c echo.Context) error {
	actions, err := h.actionRepo.ListByEmail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.InternalError(c, "failed to list actions")
	}

	return response.Success(c, actions)
}

// CompleteAction handles PATCH /api/actions/:id/complete
func (h *EmailHandler) CompleteAction(c echo.Context) error {
	if err := h.actionRepo.MarkCompleted(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "action not found")
		}
		return response.InternalError(c, "failed to complete action")
	}

	return response.SuccessWithMessage(c, nil, "action marked as completed")
}
