package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/smartstudy/platform-api/internal/models"
	"github.com/smartstudy/platform-api/internal/service"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
	"github.com/smartstudy/platform-api/pkg/response"
)

// DownloadHistoryHandler exposes the student download log endpoints.
type DownloadHistoryHandler struct {
	history   *service.DownloadHistoryService
	notes     *service.NoteService
	analytics *service.AnalyticsService
}

// NewDownloadHistoryHandler constructs DownloadHistoryHandler.
func NewDownloadHistoryHandler(history *service.DownloadHistoryService, notes *service.NoteService, analytics *service.AnalyticsService) *DownloadHistoryHandler {
	return &DownloadHistoryHandler{history: history, notes: notes, analytics: analytics}
}

// Log godoc
// @Summary Record a download performed outside the download endpoint
// @Tags Downloads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.LogDownloadRequest true "Download payload"
// @Success 201 {object} response.Envelope
// @Router /download-history [post]
func (h *DownloadHistoryHandler) Log(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.LogDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.notes.LogDownload(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.analytics.InvalidateStudent(c.Request.Context(), claims.UserID)
	response.Created(c, record)
}

// List godoc
// @Summary The calling student's download history
// @Tags Downloads
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /download-history [get]
func (h *DownloadHistoryHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var filter models.DownloadFilter
	filter.StudentID = claims.UserID
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	records, total, err := h.history.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, paginationFor(filter.Page, filter.PageSize, total))
}

// Stats godoc
// @Summary Summary statistics over the calling student's history
// @Tags Downloads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /download-history/stats [get]
func (h *DownloadHistoryHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.history.Stats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Delete godoc
// @Summary Remove one record from the calling student's history
// @Tags Downloads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Record ID"
// @Success 204
// @Router /download-history/{id} [delete]
func (h *DownloadHistoryHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.history.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.analytics.InvalidateStudent(c.Request.Context(), claims.UserID)
	response.NoContent(c)
}
