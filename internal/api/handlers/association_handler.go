package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/schoolmail-backend/internal/api/response"
	"github.com/familyhub/schoolmail-backend/internal/repository"
	"github.com/familyhub/schoolmail-backend/internal/services"
)

// AssociationHandler handles association verification and feedback
// HTTP requests
type AssociationHandler struct {
	assocRepo    repository.AssociationRepository
	associations *services.AssociationService
}

// NewAssociationHandler creates a new AssociationHandler
func NewAssociationHandler(assocRepo repository.AssociationRepository, associations *services.AssociationService) *AssociationHandler {
	return &AssociationHandler{
		assocRepo:    assocRepo,
		associations: associations,
	}
}

// ListForEmail handles GET /api/emails/:id/associations
func (h *AssociationHandler) ListForEmail(c echo.Context) error {
	ctx := c.Request().Context()
	emailID := c.Param("id")

	events, err := h.assocRepo.ListEventAssociations(ctx, emailID)
	if err != nil {
		return response.InternalError(c, "failed to list event associations")
	}

	children, err := h.assocRepo.ListChildRelevance(ctx, emailID)
	if err != nil {
		return response.InternalError(c, "failed to list child relevance")
	}

	return response.Success(c, map[string]interface{}{
		"events":   events,
		"children": children,
	})
}

// ProcessEmail handles POST /api/emails/:id/process
func (h *AssociationHandler) ProcessEmail(c echo.Context) error {
	if err := h.associations.ProcessEmail(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "email not found")
		}
		return response.InternalError(c, "failed to process email")
	}

	return response.SuccessWithMessage(c, nil, "email processed")
}

// VerifyRequest is the payload for a human verification decision.
type VerifyRequest struct {
	Kind     string `json:"kind"`
	Accept   *bool  `json:"accept"`
	Feedback string `json:"feedback"`
}

// Verify handles POST /api/associations/:id/verify
func (h *AssociationHandler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Accept == nil {
		return response.BadRequest(c, "accept is required")
	}

	kind := repository.AssociationKind(req.Kind)
	if kind != repository.KindEvent && kind != repository.KindChild {
		return response.BadRequest(c, "kind must be event or child")
	}

	err := h.associations.Verify(c.Request().Context(), c.Param("id"), kind, *req.Accept, req.Feedback)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "association not found")
		}
		if errors.Is(err, repository.ErrInvalidInput) {
			return response.BadRequest(c, err.Error())
		}
		return response.InternalError(c, "failed to verify association")
	}

	return response.SuccessWithMessage(c, nil, "association updated")
}

// FeedbackRequest is the payload for a classification correction.
type FeedbackRequest struct {
	FieldName    string `json:"field_name"`
	AIValue      string `json:"ai_value"`
	UserValue    string `json:"user_value"`
	FeedbackText string `json:"feedback_text"`
}

// SubmitFeedback handles POST /api/emails/:id/feedback
func (h *AssociationHandler) SubmitFeedback(c echo.Context) error {
	userID := currentUserID(c)
	if userID == "" {
		return response.BadRequest(c, "user id is required")
	}

	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.FieldName == "" || req.UserValue == "" {
		return response.BadRequest(c, "field_name and user_value are required")
	}

	feedback, err := h.associations.SubmitFeedback(
		c.Request().Context(),
		c.Param("id"), userID,
		req.FieldName, req.AIValue, req.UserValue, req.FeedbackText,
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "email not found")
		}
		return response.InternalError(c, "failed to record feedback")
	}

	return response.Created(c, feedback)
}
