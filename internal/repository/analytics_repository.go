package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/smartstudy/platform-api/internal/models"
)

// AnalyticsRepository runs the derived-aggregate queries behind the
// analytics endpoints. Nothing here maintains running counters; every
// result is recomputed from the base tables on read.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates a new instance.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// StudentTotals returns the download total plus distinct subject and grade
// cardinalities for one student.
func (r *AnalyticsRepository) StudentTotals(ctx context.Context, studentID string) (total, subjects, grades int, err error) {
	const query = `SELECT COUNT(*), COUNT(DISTINCT note_subject), COUNT(DISTINCT note_grade) FROM download_history WHERE student_id = $1`
	row := r.db.QueryRowContext(ctx, query, studentID)
	if scanErr := row.Scan(&total, &subjects, &grades); scanErr != nil {
		return 0, 0, 0, fmt.Errorf("student totals: %w", scanErr)
	}
	return total, subjects, grades, nil
}

// StudentSubjectCounts tallies the student's downloads per subject.
func (r *AnalyticsRepository) StudentSubjectCounts(ctx context.Context, studentID string) ([]models.SubjectTally, error) {
	const query = `SELECT note_subject AS subject, COUNT(*) AS count FROM download_history WHERE student_id = $1 GROUP BY note_subject ORDER BY count DESC`
	var tallies []models.SubjectTally
	if err := r.db.SelectContext(ctx, &tallies, query, studentID); err != nil {
		return nil, fmt.Errorf("student subject counts: %w", err)
	}
	return tallies, nil
}

// StudentMonthlyCounts buckets the student's downloads by calendar month
// over the trailing twelve months.
func (r *AnalyticsRepository) StudentMonthlyCounts(ctx context.Context, studentID string) ([]models.MonthTally, error) {
	const query = `SELECT to_char(date_trunc('month', downloaded_at), 'YYYY-MM') AS month, COUNT(*) AS count
		FROM download_history
		WHERE student_id = $1 AND downloaded_at >= date_trunc('month', NOW()) - INTERVAL '11 months'
		GROUP BY month ORDER BY month`
	var tallies []models.MonthTally
	if err := r.db.SelectContext(ctx, &tallies, query, studentID); err != nil {
		return nil, fmt.Errorf("student monthly counts: %w", err)
	}
	return tallies, nil
}

// StudentRecentActivity lists the student's downloads from the last 30 days.
func (r *AnalyticsRepository) StudentRecentActivity(ctx context.Context, studentID string) ([]models.DownloadRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM download_history WHERE student_id = $1 AND downloaded_at >= NOW() - INTERVAL '30 days' ORDER BY downloaded_at DESC`, downloadColumns)
	var records []models.DownloadRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("student recent activity: %w", err)
	}
	return records, nil
}

// StudentDownloadedSubjects returns the first distinct subjects the student
// downloaded from, in first-download order, capped at limit.
func (r *AnalyticsRepository) StudentDownloadedSubjects(ctx context.Context, studentID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT note_subject FROM download_history WHERE student_id = $1 GROUP BY note_subject ORDER BY MIN(downloaded_at) LIMIT $2`
	var subjects []string
	if err := r.db.SelectContext(ctx, &subjects, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("student downloaded subjects: %w", err)
	}
	return subjects, nil
}

// StudentRatingBySubject averages the ratings the student gave, grouped by
// the reviewed note's subject, restricted to the provided subjects.
func (r *AnalyticsRepository) StudentRatingBySubject(ctx context.Context, studentID string, subjects []string) ([]models.SubjectAverage, error) {
	if len(subjects) == 0 {
		return nil, nil
	}
	const query = `SELECT n.subject, AVG(r.rating) AS average
		FROM reviews r JOIN notes n ON n.id = r.note_id
		WHERE r.student_id = $1 AND r.is_active = TRUE AND n.subject = ANY($2)
		GROUP BY n.subject ORDER BY n.subject`
	rows, err := r.db.QueryContext(ctx, query, studentID, pq.Array(subjects))
	if err != nil {
		return nil, fmt.Errorf("student rating by subject: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var averages []models.SubjectAverage
	for rows.Next() {
		var avg models.SubjectAverage
		if err := rows.Scan(&avg.Subject, &avg.AverageRating); err != nil {
			return nil, fmt.Errorf("scan rating by subject: %w", err)
		}
		averages = append(averages, avg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rating by subject rows: %w", err)
	}
	return averages, nil
}

// TeacherTotals sums note, download and view counts over a teacher's notes.
func (r *AnalyticsRepository) TeacherTotals(ctx context.Context, teacherID string) (notes, downloads, views int, err error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(download_count), 0), COALESCE(SUM(view_count), 0) FROM notes WHERE uploaded_by = $1 AND is_active = TRUE`
	row := r.db.QueryRowContext(ctx, query, teacherID)
	if scanErr := row.Scan(&notes, &downloads, &views); scanErr != nil {
		return 0, 0, 0, fmt.Errorf("teacher totals: %w", scanErr)
	}
	return notes, downloads, views, nil
}

// TeacherNotesBySubject tallies the teacher's active notes per subject.
func (r *AnalyticsRepository) TeacherNotesBySubject(ctx context.Context, teacherID string) ([]models.SubjectTally, error) {
	const query = `SELECT subject, COUNT(*) AS count FROM notes WHERE uploaded_by = $1 AND is_active = TRUE GROUP BY subject ORDER BY count DESC`
	var tallies []models.SubjectTally
	if err := r.db.SelectContext(ctx, &tallies, query, teacherID); err != nil {
		return nil, fmt.Errorf("teacher notes by subject: %w", err)
	}
	return tallies, nil
}

// TeacherMonthlyDownloads buckets downloads of the teacher's notes by month
// over the trailing twelve months.
func (r *AnalyticsRepository) TeacherMonthlyDownloads(ctx context.Context, teacherID string) ([]models.MonthTally, error) {
	const query = `SELECT to_char(date_trunc('month', downloaded_at), 'YYYY-MM') AS month, COUNT(*) AS count
		FROM download_history
		WHERE uploaded_by = $1 AND downloaded_at >= date_trunc('month', NOW()) - INTERVAL '11 months'
		GROUP BY month ORDER BY month`
	var tallies []models.MonthTally
	if err := r.db.SelectContext(ctx, &tallies, query, teacherID); err != nil {
		return nil, fmt.Errorf("teacher monthly downloads: %w", err)
	}
	return tallies, nil
}

// TeacherTopNotes returns the teacher's most downloaded notes.
func (r *AnalyticsRepository) TeacherTopNotes(ctx context.Context, teacherID string, limit int) ([]models.NoteSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT id, title, subject, download_count FROM notes WHERE uploaded_by = $1 AND is_active = TRUE ORDER BY download_count DESC LIMIT $2`
	var summaries []models.NoteSummary
	if err := r.db.SelectContext(ctx, &summaries, query, teacherID, limit); err != nil {
		return nil, fmt.Errorf("teacher top notes: %w", err)
	}
	return summaries, nil
}

// TeacherReviewSummary counts and averages all reviews across the
// teacher's notes.
func (r *AnalyticsRepository) TeacherReviewSummary(ctx context.Context, teacherID string) (count int, average float64, err error) {
	const query = `SELECT COUNT(*), COALESCE(AVG(r.rating), 0)
		FROM reviews r JOIN notes n ON n.id = r.note_id
		WHERE n.uploaded_by = $1 AND r.is_active = TRUE AND r.is_approved = TRUE`
	row := r.db.QueryRowContext(ctx, query, teacherID)
	if scanErr := row.Scan(&count, &average); scanErr != nil {
		return 0, 0, fmt.Errorf("teacher review summary: %w", scanErr)
	}
	return count, average, nil
}

// TeacherDistinctStudents counts unique students who ever downloaded any of
// the teacher's notes.
func (r *AnalyticsRepository) TeacherDistinctStudents(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT student_id) FROM download_history WHERE uploaded_by = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID); err != nil {
		return 0, fmt.Errorf("teacher distinct students: %w", err)
	}
	return count, nil
}

// PlatformStats counts the public platform-wide totals.
func (r *AnalyticsRepository) PlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM users WHERE role = 'TEACHER' AND active = TRUE),
		(SELECT COUNT(*) FROM users WHERE role = 'STUDENT' AND active = TRUE),
		(SELECT COUNT(*) FROM notes WHERE is_active = TRUE AND is_public = TRUE),
		(SELECT COUNT(*) FROM reviews WHERE is_active = TRUE AND is_approved = TRUE),
		(SELECT COUNT(*) FROM download_history)`
	var stats models.PlatformStats
	row := r.db.QueryRowContext(ctx, query)
	if err := row.Scan(&stats.TotalTeachers, &stats.TotalStudents, &stats.TotalNotes, &stats.TotalReviews, &stats.TotalDownloads); err != nil {
		return nil, fmt.Errorf("platform stats: %w", err)
	}
	return &stats, nil
}
