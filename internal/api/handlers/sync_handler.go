package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/schoolmail-backend/internal/api/response"
	"github.com/familyhub/schoolmail-backend/internal/repository"
	"github.com/familyhub/schoolmail-backend/internal/services"
)

// SyncHandler handles sync orchestration HTTP requests
type SyncHandler struct {
	syncService *services.SyncService
	batch       *services.BatchService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *services.SyncService, batch *services.BatchService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		batch:       batch,
	}
}

// SyncAccount handles POST /api/accounts/:id/sync. The sync runs in
// the request; a sync already running for the account returns 409.
func (h *SyncHandler) SyncAccount(c echo.Context) error {
	result, err := h.syncService.SyncAccount(c.Request().Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return response.NotFound(c, "account not found")
		case errors.Is(err, services.ErrSyncInProgress):
			return response.SyncConflict(c, "sync already in progress for this account")
		default:
			return response.InternalError(c, err.Error())
		}
	}

	return response.Success(c, result)
}

// SyncAll handles POST /api/sync. Every active account for the user is
// synced sequentially; per-account failures are reported alongside the
// results that succeeded.
func (h *SyncHandler) SyncAll(c echo.Context) error {
	userID := currentUserID(c)
	if userID == "" {
		return response.BadRequest(c, "user id is required")
	}

	results, err := h.syncService.SyncAllAccounts(c.Request().Context(), userID)
	if err != nil {
		return response.SuccessWithMessage(c, results, err.Error())
	}

	return response.Success(c, results)
}

// ProcessUnprocessed handles POST /api/emails/process. It drains the
// user's unprocessed backlog through the classifier.
func (h *SyncHandler) ProcessUnprocessed(c echo.Context) error {
	userID := currentUserID(c)
	if userID == "" {
		return response.BadRequest(c, "user id is required")
	}

	result, err := h.batch.ProcessAllUnprocessed(c.Request().Context(), userID)
	if err != nil {
		return response.InternalError(c, err.Error())
	}

	return response.Success(c, result)
}

// UnprocessedCount handles GET /api/emails/unprocessed/count
func (h *SyncHandler) UnprocessedCount(c echo.Context) error {
	userID := currentUserID(c)
	if userID == "" {
		return response.BadRequest(c, "user id is required")
	}

	count, err := h.batch.CountUnprocessed(c.Request().Context(), userID)
	if err != nil {
		return response.InternalError(c, "failed to count unprocessed emails")
	}

	return response.Success(c, map[string]int64{"count": count})
}
