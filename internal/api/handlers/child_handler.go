package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/schoolmail-backend/internal/api/response"
	"github.com/familyhub/schoolmail-backend/internal/models"
	"github.com/familyhub/schoolmail-backend/internal/repository"
	"github.com/familyhub/schoolmail-backend/internal/validator"
)

// ChildHandler handles household children HTTP requests
type ChildHandler struct {
	childRepo repository.ChildRepository
}

// NewChildHandler creates a new ChildHandler
func NewChildHandler(childRepo repository.ChildRepository) *ChildHandler {
	return &ChildHandler{childRepo: childRepo}
}

// CreateChildRequest is the payload for adding a child.
type CreateChildRequest struct {
	Name  string `json:"name"`
	Grade string `json:"grade"`
	Notes string `json:"notes"`
}

// Create handles POST /api/children
func (h *ChildHandler) Create(c echo.Context) error {
	userID := currentUserID(c)
	if userID == "" {
		return response.BadRequest(c, "user id is required")
	}

	var req CreateChildRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	name := validator.SanitizeString(req.Name, 255)
	if name == "" {
		return response.BadRequest(c, "name is required")
	}

	child := &models.Child{
		UserID: userID,
		Name:   name,
		Grade:  validator.SanitizeString(req.Grade, 50),
		Notes:  req.Notes,
	}
	if err := h.childRepo.Create(c.Request().Context(), child); err != nil {
		return response.InternalError(c, "failed to create child")
	}

	return response.Created(c, child)
}

// List handles GET /api/children
func (h *ChildHandler) List(c echo.Context) error {
	userID := currentUserID(c)
	if userID == "" {
		return response.BadRequest(c, "user id is required")
	}

	children, err := h.childRepo.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return response.InternalError(c, "failed to list children")
	}

	return response.Success(c, children)
}

// Get handles GET /api/children/:id
func (h *ChildHandler) Get(c echo.Context) error {
	child, err := h.childRepo.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "child not found")
		}
		return response.InternalError(c, "failed to get child")
	}

	return response.Success(c, child)
}
