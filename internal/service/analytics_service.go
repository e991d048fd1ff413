package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/smartstudy/platform-api/internal/models"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
	"github.com/smartstudy/platform-api/pkg/export"
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	StudentTotals(ctx context.Context, studentID string) (total, subjects, grades int, err error)
	StudentSubjectCounts(ctx context.Context, studentID string) ([]models.SubjectTally, error)
	StudentMonthlyCounts(ctx context.Context, studentID string) ([]models.MonthTally, error)
	StudentRecentActivity(ctx context.Context, studentID string) ([]models.DownloadRecord, error)
	StudentDownloadedSubjects(ctx context.Context, studentID string, limit int) ([]string, error)
	StudentRatingBySubject(ctx context.Context, studentID string, subjects []string) ([]models.SubjectAverage, error)
	TeacherTotals(ctx context.Context, teacherID string) (notes, downloads, views int, err error)
	TeacherNotesBySubject(ctx context.Context, teacherID string) ([]models.SubjectTally, error)
	TeacherMonthlyDownloads(ctx context.Context, teacherID string) ([]models.MonthTally, error)
	TeacherTopNotes(ctx context.Context, teacherID string, limit int) ([]models.NoteSummary, error)
	TeacherReviewSummary(ctx context.Context, teacherID string) (count int, average float64, err error)
	TeacherDistinctStudents(ctx context.Context, teacherID string) (int, error)
	PlatformStats(ctx context.Context) (*models.PlatformStats, error)
}

type analyticsDownloadRepository interface {
	DistinctDays(ctx context.Context, studentID string) ([]time.Time, error)
}

// AnalyticsService computes the derived analytics payloads with cache
// integration.
type AnalyticsService struct {
	repo      AnalyticsRepository
	downloads analyticsDownloadRepository
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger

	// now is replaceable for streak tests.
	now func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, downloads analyticsDownloadRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		repo:      repo,
		downloads: downloads,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// StudentProgress assembles the per-student analytics payload. The boolean
// indicates whether data originated from cache.
func (s *AnalyticsService) StudentProgress(ctx context.Context, studentID string) (*models.StudentProgress, bool, error) {
	cacheKey := fmt.Sprintf("analytics:student:%s", studentID)
	var cached models.StudentProgress
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()

	total, subjects, grades, err := s.repo.StudentTotals(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute student totals")
	}
	bySubject, err := s.repo.StudentSubjectCounts(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count subjects")
	}
	monthly, err := s.repo.StudentMonthlyCounts(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bucket months")
	}
	days, err := s.downloads.DistinctDays(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load download days")
	}
	downloadedSubjects, err := s.repo.StudentDownloadedSubjects(ctx, studentID, 10)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list downloaded subjects")
	}
	ratings, err := s.repo.StudentRatingBySubject(ctx, studentID, downloadedSubjects)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to average ratings")
	}
	for i := range ratings {
		ratings[i].AverageRating = roundRating(ratings[i].AverageRating)
	}
	recent, err := s.repo.StudentRecentActivity(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent activity")
	}

	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_student_progress", time.Since(start))
	}

	progress := &models.StudentProgress{
		TotalDownloads:   total,
		DistinctSubjects: subjects,
		DistinctGrades:   grades,
		BySubject:        bySubject,
		Monthly:          monthly,
		Streak:           computeStreak(days, s.now().UTC()),
		SubjectRatings:   ratings,
		RecentActivity:   recent,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, progress, 0); err != nil {
			s.logger.Warn("cache student progress", zap.Error(err))
		}
	}
	return progress, false, nil
}

// TeacherAnalytics assembles the per-teacher catalogue summary.
func (s *AnalyticsService) TeacherAnalytics(ctx context.Context, teacherID string) (*models.TeacherAnalytics, bool, error) {
	cacheKey := fmt.Sprintf("analytics:teacher:%s", teacherID)
	var cached models.TeacherAnalytics
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()

	notes, downloads, views, err := s.repo.TeacherTotals(ctx, teacherID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute teacher totals")
	}
	bySubject, err := s.repo.TeacherNotesBySubject(ctx, teacherID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notes by subject")
	}
	monthly, err := s.repo.TeacherMonthlyDownloads(ctx, teacherID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bucket downloads")
	}
	top, err := s.repo.TeacherTopNotes(ctx, teacherID, 10)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank notes")
	}
	reviewCount, reviewAverage, err := s.repo.TeacherReviewSummary(ctx, teacherID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise reviews")
	}
	students, err := s.repo.TeacherDistinctStudents(ctx, teacherID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_teacher", time.Since(start))
	}

	analytics := &models.TeacherAnalytics{
		TotalNotes:       notes,
		TotalDownloads:   downloads,
		TotalViews:       views,
		NotesBySubject:   bySubject,
		MonthlyDownloads: monthly,
		TopNotes:         top,
		TotalReviews:     reviewCount,
		AverageRating:    roundRating(reviewAverage),
		DistinctStudents: students,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, analytics, 0); err != nil {
			s.logger.Warn("cache teacher analytics", zap.Error(err))
		}
	}
	return analytics, false, nil
}

// PlatformStats returns the public platform-wide counters.
func (s *AnalyticsService) PlatformStats(ctx context.Context) (*models.PlatformStats, bool, error) {
	const cacheKey = "analytics:platform"
	var cached models.PlatformStats
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	stats, err := s.repo.PlatformStats(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute platform stats")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_platform", time.Since(start))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, 0); err != nil {
			s.logger.Warn("cache platform stats", zap.Error(err))
		}
	}
	return stats, false, nil
}

// TeacherExportDataset flattens the teacher analytics into a tabular dataset
// for CSV and PDF export.
func (s *AnalyticsService) TeacherExportDataset(ctx context.Context, teacherID string) (export.Dataset, error) {
	analytics, _, err := s.TeacherAnalytics(ctx, teacherID)
	if err != nil {
		return export.Dataset{}, err
	}

	dataset := export.Dataset{
		Headers: []string{"metric", "value"},
		Rows: []map[string]string{
			{"metric": "total_notes", "value": strconv.Itoa(analytics.TotalNotes)},
			{"metric": "total_downloads", "value": strconv.Itoa(analytics.TotalDownloads)},
			{"metric": "total_views", "value": strconv.Itoa(analytics.TotalViews)},
			{"metric": "total_reviews", "value": strconv.Itoa(analytics.TotalReviews)},
			{"metric": "average_rating", "value": strconv.FormatFloat(analytics.AverageRating, 'f', 1, 64)},
			{"metric": "distinct_students", "value": strconv.Itoa(analytics.DistinctStudents)},
		},
	}
	for _, tally := range analytics.NotesBySubject {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"metric": fmt.Sprintf("notes_subject_%s", tally.Subject),
			"value":  strconv.Itoa(tally.Count),
		})
	}
	for _, tally := range analytics.MonthlyDownloads {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"metric": fmt.Sprintf("downloads_%s", tally.Month),
			"value":  strconv.Itoa(tally.Count),
		})
	}
	return dataset, nil
}

// InvalidateStudent drops the cached payload for one student.
func (s *AnalyticsService) InvalidateStudent(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("analytics:student:%s", studentID)); err != nil {
		s.logger.Warn("invalidate student analytics", zap.Error(err))
	}
}

// SystemMetrics returns the instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}

// computeStreak derives the consecutive-day activity streaks from the
// distinct download days. Days must be date-truncated and sorted newest
// first. The current streak requires activity today.
func computeStreak(days []time.Time, now time.Time) models.Streak {
	if len(days) == 0 {
		return models.Streak{}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var streak models.Streak
	run := 1
	maxRun := 1
	for i := 1; i < len(days); i++ {
		if days[i-1].Sub(days[i]) == 24*time.Hour {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 1
		}
	}
	streak.Max = maxRun

	if days[0].Equal(today) {
		current := 1
		for i := 1; i < len(days); i++ {
			if days[i-1].Sub(days[i]) == 24*time.Hour {
				current++
			} else {
				break
			}
		}
		streak.Current = current
	}
	return streak
}
