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

const reviewColumns = `r.id, r.note_id, r.student_id, u.full_name AS student_name, r.rating, r.comment, r.is_helpful, r.is_clear, r.is_complete, r.is_accurate, r.is_active, r.is_approved, r.moderator_note, r.helpful_votes, r.total_votes, r.created_at, r.updated_at`

const reviewJoin = `FROM reviews r JOIN users u ON u.id = r.student_id`

// ReviewRepository provides database access for reviews, including the
// aggregation queries behind review statistics.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new instance of ReviewRepository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

type reviewRow struct {
	ID            string         `db:"id"`
	NoteID        string         `db:"note_id"`
	StudentID     string         `db:"student_id"`
	StudentName   string         `db:"student_name"`
	Rating        int            `db:"rating"`
	Comment       string         `db:"comment"`
	IsHelpful     bool           `db:"is_helpful"`
	IsClear       bool           `db:"is_clear"`
	IsComplete    bool           `db:"is_complete"`
	IsAccurate    bool           `db:"is_accurate"`
	IsActive      bool           `db:"is_active"`
	IsApproved    bool           `db:"is_approved"`
	ModeratorNote sql.NullString `db:"moderator_note"`
	HelpfulVotes  int            `db:"helpful_votes"`
	TotalVotes    int            `db:"total_votes"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r reviewRow) toReview() *models.Review {
	review := &models.Review{
		ID:           r.ID,
		NoteID:       r.NoteID,
		StudentID:    r.StudentID,
		StudentName:  r.StudentName,
		Rating:       r.Rating,
		Comment:      r.Comment,
		IsHelpful:    r.IsHelpful,
		IsClear:      r.IsClear,
		IsComplete:   r.IsComplete,
		IsAccurate:   r.IsAccurate,
		IsActive:     r.IsActive,
		IsApproved:   r.IsApproved,
		HelpfulVotes: r.HelpfulVotes,
		TotalVotes:   r.TotalVotes,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ModeratorNote.Valid {
		note := r.ModeratorNote.String
		review.ModeratorNote = &note
	}
	return review
}

// Create inserts a new review. The UNIQUE(note_id, student_id) index
// rejects a second review for the same pair.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now

	const query = `INSERT INTO reviews (id, note_id, student_id, rating, comment, is_helpful, is_clear, is_complete, is_accurate, is_active, is_approved, helpful_votes, total_votes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, TRUE, 0, 0, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		review.ID, review.NoteID, review.StudentID, review.Rating, review.Comment,
		review.IsHelpful, review.IsClear, review.IsComplete, review.IsAccurate,
		review.CreatedAt, review.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// FindByID returns a review by identifier.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE r.id = $1 LIMIT 1`, reviewColumns, reviewJoin)
	var row reviewRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review by id: %w", err)
	}
	return row.toReview(), nil
}

// FindByNoteAndStudent returns the student's review for a note if any.
func (r *ReviewRepository) FindByNoteAndStudent(ctx context.Context, noteID, studentID string) (*models.Review, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE r.note_id = $1 AND r.student_id = $2 LIMIT 1`, reviewColumns, reviewJoin)
	var row reviewRow
	if err := r.db.GetContext(ctx, &row, query, noteID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review by note and student: %w", err)
	}
	return row.toReview(), nil
}

// ListByNote returns a note's visible reviews with a total count.
func (r *ReviewRepository) ListByNote(ctx context.Context, filter models.ReviewFilter) ([]models.Review, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT %s %s WHERE r.note_id = $1 AND r.is_active = TRUE AND r.is_approved = TRUE ORDER BY r.created_at DESC LIMIT %d OFFSET %d`, reviewColumns, reviewJoin, pageSize, offset)

	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, filter.NoteID); err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM reviews r WHERE r.note_id = $1 AND r.is_active = TRUE AND r.is_approved = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, filter.NoteID); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	reviews := make([]models.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, *row.toReview())
	}
	return reviews, total, nil
}

// Update rewrites the student-editable fields.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	review.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reviews SET rating = $2, comment = $3, is_helpful = $4, is_clear = $5, is_complete = $6, is_accurate = $7, updated_at = $8 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		review.ID, review.Rating, review.Comment,
		review.IsHelpful, review.IsClear, review.IsComplete, review.IsAccurate,
		review.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

// Delete removes a review permanently.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM reviews WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// DeleteByNote removes all reviews for a note (note-deletion cascade).
func (r *ReviewRepository) DeleteByNote(ctx context.Context, noteID string) error {
	const query = `DELETE FROM reviews WHERE note_id = $1`
	if _, err := r.db.ExecContext(ctx, query, noteID); err != nil {
		return fmt.Errorf("delete reviews by note: %w", err)
	}
	return nil
}

// Vote increments the helpfulness counters.
func (r *ReviewRepository) Vote(ctx context.Context, id string, helpful bool) error {
	helpfulDelta := 0
	if helpful {
		helpfulDelta = 1
	}
	const query = `UPDATE reviews SET helpful_votes = helpful_votes + $2, total_votes = total_votes + 1, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, helpfulDelta, time.Now().UTC()); err != nil {
		return fmt.Errorf("vote review: %w", err)
	}
	return nil
}

// Report clears the approval flag so the review drops out of statistics.
func (r *ReviewRepository) Report(ctx context.Context, id, moderatorNote string) error {
	const query = `UPDATE reviews SET is_approved = FALSE, moderator_note = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, moderatorNote, time.Now().UTC()); err != nil {
		return fmt.Errorf("report review: %w", err)
	}
	return nil
}

// Aggregate computes the mean rating and count over qualifying reviews.
// Zero reviews yields (0, 0, nil).
func (r *ReviewRepository) Aggregate(ctx context.Context, noteID string) (float64, int, error) {
	const query = `SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE note_id = $1 AND is_active = TRUE AND is_approved = TRUE`
	var avg float64
	var count int
	row := r.db.QueryRowContext(ctx, query, noteID)
	if err := row.Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("aggregate reviews: %w", err)
	}
	return avg, count, nil
}

// Distribution returns the 1..5 star histogram over qualifying reviews.
func (r *ReviewRepository) Distribution(ctx context.Context, noteID string) (map[int]int, error) {
	const query = `SELECT rating, COUNT(*) FROM reviews WHERE note_id = $1 AND is_active = TRUE AND is_approved = TRUE GROUP BY rating`
	rows, err := r.db.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("review distribution: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	distribution := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("scan review distribution: %w", err)
		}
		if rating >= 1 && rating <= 5 {
			distribution[rating] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review distribution rows: %w", err)
	}
	return distribution, nil
}

// CategoryCounts tallies the true category flags over qualifying reviews.
func (r *ReviewRepository) CategoryCounts(ctx context.Context, noteID string) (models.CategoriesStats, error) {
	const query = `SELECT
		COALESCE(SUM(CASE WHEN is_helpful THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_clear THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_complete THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_accurate THEN 1 ELSE 0 END), 0)
		FROM reviews WHERE note_id = $1 AND is_active = TRUE AND is_approved = TRUE`
	var stats models.CategoriesStats
	row := r.db.QueryRowContext(ctx, query, noteID)
	if err := row.Scan(&stats.Helpful, &stats.Clear, &stats.Complete, &stats.Accurate); err != nil {
		return models.CategoriesStats{}, fmt.Errorf("review category counts: %w", err)
	}
	return stats, nil
}
