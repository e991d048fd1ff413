package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/smartstudy/platform-api/internal/middleware"
	"github.com/smartstudy/platform-api/internal/models"
	"github.com/smartstudy/platform-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth      *AuthHandler
	Notes     *NoteHandler
	Reviews   *ReviewHandler
	Analytics *AnalyticsHandler
	Downloads *DownloadHistoryHandler
	Metrics   *MetricsHandler
}

// RegisterRoutes wires the full API surface onto the engine.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService) {
	if prefix == "" {
		prefix = "/api"
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
		authGroup.POST("/reset-password/:token", h.Auth.ResetPassword)

		authGroup.GET("/me", middleware.JWT(auth), h.Auth.Profile)
		authGroup.PUT("/profile", middleware.JWT(auth), h.Auth.UpdateProfile)
		authGroup.PUT("/password", middleware.JWT(auth), h.Auth.ChangePassword)
		authGroup.DELETE("/account", middleware.JWT(auth), h.Auth.Deactivate)
	}

	notes := api.Group("/notes")
	{
		notes.GET("", middleware.OptionalJWT(auth), h.Notes.List)
		notes.GET("/stats", h.Notes.Stats)
		notes.GET("/my-notes", middleware.JWT(auth), middleware.RequireRoles(models.RoleTeacher), h.Notes.ListMine)
		notes.GET("/:id", middleware.OptionalJWT(auth), h.Notes.Get)
		notes.GET("/:id/download", middleware.JWT(auth), h.Notes.Download)

		notes.POST("", middleware.JWT(auth), middleware.RequireRoles(models.RoleTeacher), h.Notes.Create)
		notes.PUT("/:id", middleware.JWT(auth), middleware.RequireRoles(models.RoleTeacher), h.Notes.Update)
		notes.DELETE("/:id", middleware.JWT(auth), middleware.RequireRoles(models.RoleTeacher), h.Notes.Delete)
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("/note/:noteId", h.Reviews.ListByNote)
		reviews.GET("/stats/:noteId", h.Reviews.Statistics)

		reviews.POST("", middleware.JWT(auth), middleware.RequireRoles(models.RoleStudent), h.Reviews.Create)
		reviews.PUT("/:id", middleware.JWT(auth), middleware.RequireRoles(models.RoleStudent), h.Reviews.Update)
		reviews.DELETE("/:id", middleware.JWT(auth), middleware.RequireRoles(models.RoleStudent), h.Reviews.Delete)
		reviews.POST("/:id/vote", middleware.JWT(auth), h.Reviews.Vote)
		reviews.POST("/:id/report", middleware.JWT(auth), h.Reviews.Report)
	}

	downloads := api.Group("/download-history", middleware.JWT(auth), middleware.RequireRoles(models.RoleStudent))
	{
		downloads.POST("", h.Downloads.Log)
		downloads.GET("", h.Downloads.List)
		downloads.GET("/stats", h.Downloads.Stats)
		downloads.DELETE("/:id", h.Downloads.Delete)
	}

	analytics := api.Group("/analytics")
	{
		analytics.GET("/platform", h.Analytics.PlatformStats)
		analytics.GET("/system-metrics", middleware.JWT(auth), h.Metrics.System)
		analytics.GET("/student-progress", middleware.JWT(auth), middleware.RequireRoles(models.RoleStudent), h.Analytics.StudentProgress)
		analytics.GET("/teacher-analytics", middleware.JWT(auth), middleware.RequireRoles(models.RoleTeacher), h.Analytics.TeacherAnalytics)
		analytics.GET("/teacher-analytics/export", middleware.JWT(auth), middleware.RequireRoles(models.RoleTeacher), h.Analytics.ExportTeacherAnalytics)
	}
}
