package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smartstudy/platform-api/internal/models"
	"github.com/smartstudy/platform-api/internal/service"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
	"github.com/smartstudy/platform-api/pkg/response"
)

// NoteHandler exposes note catalogue endpoints.
type NoteHandler struct {
	notes *service.NoteService
}

// NewNoteHandler constructs NoteHandler.
func NewNoteHandler(notes *service.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// Create godoc
// @Summary Upload a new note
// @Tags Notes
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param subject formData string true "Subject"
// @Param grade formData string true "Grade"
// @Param category formData string true "Category"
// @Param file formData file false "Attachment"
// @Success 201 {object} response.Envelope
// @Router /notes [post]
func (h *NoteHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateNoteRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	file, err := c.FormFile("file")
	if err != nil && err != http.ErrMissingFile {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid file upload"))
		return
	}
	note, err := h.notes.Create(c.Request.Context(), claims.UserID, req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, note)
}

// List godoc
// @Summary Browse the note catalogue
// @Tags Notes
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param grade query string false "Filter by grade"
// @Param category query string false "Filter by category"
// @Param difficulty query string false "Filter by difficulty"
// @Param tag query string false "Filter by tag"
// @Param teacher query string false "Filter by uploader"
// @Param search query string false "Search title and description"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Router /notes [get]
func (h *NoteHandler) List(c *gin.Context) {
	filter := noteFilterFromQuery(c)
	notes, total, err := h.notes.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, paginationFor(filter.Page, filter.PageSize, total))
}

// ListMine godoc
// @Summary List the teacher's own notes including private ones
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notes/my-notes [get]
func (h *NoteHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := noteFilterFromQuery(c)
	notes, total, err := h.notes.ListMine(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, paginationFor(filter.Page, filter.PageSize, total))
}

// Stats godoc
// @Summary Platform-wide note statistics
// @Tags Notes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notes/stats [get]
func (h *NoteHandler) Stats(c *gin.Context) {
	stats, err := h.notes.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Get godoc
// @Summary Get note detail
// @Tags Notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} response.Envelope
// @Router /notes/{id} [get]
func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.notes.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// Update godoc
// @Summary Update a note
// @Tags Notes
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Note ID"
// @Success 200 {object} response.Envelope
// @Router /notes/{id} [put]
func (h *NoteHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.UpdateNoteRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	file, err := c.FormFile("file")
	if err != nil && err != http.ErrMissingFile {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid file upload"))
		return
	}
	note, err := h.notes.Update(c.Request.Context(), claims.UserID, c.Param("id"), req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// Delete godoc
// @Summary Delete a note with its reviews and file
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Note ID"
// @Success 204
// @Router /notes/{id} [delete]
func (h *NoteHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.notes.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download a note's file
// @Tags Notes
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Note ID"
// @Success 302
// @Router /notes/{id}/download [get]
func (h *NoteHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	target, err := h.notes.Download(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if target.RedirectURL != "" {
		c.Redirect(http.StatusFound, target.RedirectURL)
		return
	}
	name := target.DownloadName
	if name == "" {
		name = c.Param("id")
	}
	c.FileAttachment(target.LocalPath, name)
}

func noteFilterFromQuery(c *gin.Context) models.NoteFilter {
	var filter models.NoteFilter
	filter.Subject = strings.TrimSpace(c.Query("subject"))
	filter.Grade = strings.TrimSpace(c.Query("grade"))
	filter.Category = strings.TrimSpace(c.Query("category"))
	filter.Difficulty = strings.TrimSpace(c.Query("difficulty"))
	filter.Tag = strings.TrimSpace(c.Query("tag"))
	filter.TeacherID = strings.TrimSpace(c.Query("teacher"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}
