package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartstudy/platform-api/internal/service"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
	"github.com/smartstudy/platform-api/pkg/export"
	"github.com/smartstudy/platform-api/pkg/response"
)

// AnalyticsHandler exposes analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
	}
}

// StudentProgress godoc
// @Summary The calling student's learning progress
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/student-progress [get]
func (h *AnalyticsHandler) StudentProgress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	progress, cached, err := h.analytics.StudentProgress(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil, map[string]interface{}{"cached": cached})
}

// TeacherAnalytics godoc
// @Summary The calling teacher's catalogue analytics
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/teacher-analytics [get]
func (h *AnalyticsHandler) TeacherAnalytics(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	analytics, cached, err := h.analytics.TeacherAnalytics(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil, map[string]interface{}{"cached": cached})
}

// ExportTeacherAnalytics godoc
// @Summary Export the calling teacher's analytics as CSV or PDF
// @Tags Analytics
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Success 200
// @Router /analytics/teacher-analytics/export [get]
func (h *AnalyticsHandler) ExportTeacherAnalytics(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	dataset, err := h.analytics.TeacherExportDataset(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	stamp := time.Now().UTC().Format("20060102")
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		payload, err := h.csv.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=teacher-analytics-%s.csv", stamp))
		c.Data(http.StatusOK, "text/csv", payload)
	case "pdf":
		payload, err := h.pdf.Render(dataset, "Teacher Analytics")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=teacher-analytics-%s.pdf", stamp))
		c.Data(http.StatusOK, "application/pdf", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

// PlatformStats godoc
// @Summary Public platform-wide statistics
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/platform [get]
func (h *AnalyticsHandler) PlatformStats(c *gin.Context) {
	stats, cached, err := h.analytics.PlatformStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, map[string]interface{}{"cached": cached})
}
