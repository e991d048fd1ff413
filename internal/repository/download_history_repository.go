package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartstudy/platform-api/internal/models"
)

const downloadColumns = `id, note_id, student_id, note_title, note_subject, note_grade, uploaded_by, file_name, file_url, file_size, file_mime, downloaded_at`

// DownloadHistoryRepository provides database access for the append-only
// download log.
type DownloadHistoryRepository struct {
	db *sqlx.DB
}

// NewDownloadHistoryRepository creates a new instance.
func NewDownloadHistoryRepository(db *sqlx.DB) *DownloadHistoryRepository {
	return &DownloadHistoryRepository{db: db}
}

// Create appends a download record. Records are never updated.
func (r *DownloadHistoryRepository) Create(ctx context.Context, record *models.DownloadRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DownloadedAt.IsZero() {
		record.DownloadedAt = time.Now().UTC()
	}

	const query = `INSERT INTO download_history (id, note_id, student_id, note_title, note_subject, note_grade, uploaded_by, file_name, file_url, file_size, file_mime, downloaded_at)
		VALUES (:id, :note_id, :student_id, :note_title, :note_subject, :note_grade, :uploaded_by, :file_name, :file_url, :file_size, :file_mime, :downloaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create download record: %w", err)
	}
	return nil
}

// FindByID returns a download record by identifier.
func (r *DownloadHistoryRepository) FindByID(ctx context.Context, id string) (*models.DownloadRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM download_history WHERE id = $1 LIMIT 1`, downloadColumns)
	var record models.DownloadRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find download record: %w", err)
	}
	return &record, nil
}

// ListByStudent pages through a student's history, newest first.
func (r *DownloadHistoryRepository) ListByStudent(ctx context.Context, filter models.DownloadFilter) ([]models.DownloadRecord, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT %s FROM download_history WHERE student_id = $1 ORDER BY downloaded_at DESC LIMIT %d OFFSET %d`, downloadColumns, pageSize, offset)

	var records []models.DownloadRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, filter.StudentID); err != nil {
		return nil, 0, fmt.Errorf("list download history: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM download_history WHERE student_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, filter.StudentID); err != nil {
		return nil, 0, fmt.Errorf("count download history: %w", err)
	}

	return records, total, nil
}

// Delete removes one record; callers enforce ownership first.
func (r *DownloadHistoryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM download_history WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete download record: %w", err)
	}
	return nil
}

// Stats summarises one student's log.
func (r *DownloadHistoryRepository) Stats(ctx context.Context, studentID string) (*models.DownloadStats, error) {
	const query = `SELECT COUNT(*),
		COUNT(DISTINCT note_subject),
		COUNT(*) FILTER (WHERE downloaded_at >= NOW() - INTERVAL '30 days')
		FROM download_history WHERE student_id = $1`
	var stats models.DownloadStats
	row := r.db.QueryRowContext(ctx, query, studentID)
	if err := row.Scan(&stats.TotalDownloads, &stats.DistinctSubjects, &stats.Last30Days); err != nil {
		return nil, fmt.Errorf("download stats: %w", err)
	}
	return &stats, nil
}

// DistinctDays returns the distinct calendar days (UTC) on which the
// student downloaded anything, newest first. Feeds streak computation.
func (r *DownloadHistoryRepository) DistinctDays(ctx context.Context, studentID string) ([]time.Time, error) {
	const query = `SELECT DISTINCT (downloaded_at AT TIME ZONE 'UTC')::date AS day FROM download_history WHERE student_id = $1 ORDER BY day DESC`
	var days []time.Time
	if err := r.db.SelectContext(ctx, &days, query, studentID); err != nil {
		return nil, fmt.Errorf("distinct download days: %w", err)
	}
	return days, nil
}
