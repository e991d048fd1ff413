package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/smartstudy/platform-api/internal/models"
)

const noteColumns = `n.id, n.title, n.description, n.subject, n.grade, n.category, n.difficulty, n.tags, n.file_name, n.file_original_name, n.file_url, n.file_object_path, n.file_size, n.file_mime, n.uploaded_by, u.full_name AS uploader_name, n.is_public, n.is_active, n.download_count, n.view_count, n.average_rating, n.rating_count, n.created_at, n.updated_at`

const noteJoin = `FROM notes n JOIN users u ON u.id = n.uploaded_by`

// NoteRepository provides database access for notes.
type NoteRepository struct {
	db *sqlx.DB
}

// NewNoteRepository creates a new instance of NoteRepository.
func NewNoteRepository(db *sqlx.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

type noteRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Subject          string         `db:"subject"`
	Grade            string         `db:"grade"`
	Category         string         `db:"category"`
	Difficulty       string         `db:"difficulty"`
	Tags             pq.StringArray `db:"tags"`
	FileName         sql.NullString `db:"file_name"`
	FileOriginalName sql.NullString `db:"file_original_name"`
	FileURL          sql.NullString `db:"file_url"`
	FileObjectPath   sql.NullString `db:"file_object_path"`
	FileSize         sql.NullInt64  `db:"file_size"`
	FileMime         sql.NullString `db:"file_mime"`
	UploadedBy       string         `db:"uploaded_by"`
	UploaderName     string         `db:"uploader_name"`
	IsPublic         bool           `db:"is_public"`
	IsActive         bool           `db:"is_active"`
	DownloadCount    int            `db:"download_count"`
	ViewCount        int            `db:"view_count"`
	AverageRating    float64        `db:"average_rating"`
	RatingCount      int            `db:"rating_count"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r noteRow) toNote() *models.Note {
	note := &models.Note{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Subject:       r.Subject,
		Grade:         r.Grade,
		Category:      models.NoteCategory(r.Category),
		Difficulty:    models.NoteDifficulty(r.Difficulty),
		Tags:          r.Tags,
		UploadedBy:    r.UploadedBy,
		UploaderName:  r.UploaderName,
		IsPublic:      r.IsPublic,
		IsActive:      r.IsActive,
		DownloadCount: r.DownloadCount,
		ViewCount:     r.ViewCount,
		AverageRating: r.AverageRating,
		RatingCount:   r.RatingCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.FileName.Valid {
		note.File = &models.FileMeta{
			Name:         r.FileName.String,
			OriginalName: r.FileOriginalName.String,
			URL:          r.FileURL.String,
			ObjectPath:   r.FileObjectPath.String,
			Size:         r.FileSize.Int64,
			MimeType:     r.FileMime.String,
		}
	}
	return note
}

func fileColumnsOf(note *models.Note) (name, original, url, objectPath sql.NullString, size sql.NullInt64, mime sql.NullString) {
	if note.File == nil {
		return
	}
	name = sql.NullString{String: note.File.Name, Valid: true}
	original = sql.NullString{String: note.File.OriginalName, Valid: true}
	url = sql.NullString{String: note.File.URL, Valid: note.File.URL != ""}
	objectPath = sql.NullString{String: note.File.ObjectPath, Valid: true}
	size = sql.NullInt64{Int64: note.File.Size, Valid: true}
	mime = sql.NullString{String: note.File.MimeType, Valid: true}
	return
}

// Create inserts a new note.
func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	note.CreatedAt = now
	note.UpdatedAt = now

	name, original, url, objectPath, size, mime := fileColumnsOf(note)

	const query = `INSERT INTO notes (id, title, description, subject, grade, category, difficulty, tags, file_name, file_original_name, file_url, file_object_path, file_size, file_mime, uploaded_by, is_public, is_active, download_count, view_count, average_rating, rating_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 0, 0, 0, 0, $18, $19)`
	if _, err := r.db.ExecContext(ctx, query,
		note.ID, note.Title, note.Description, note.Subject, note.Grade, note.Category, note.Difficulty, note.Tags,
		name, original, url, objectPath, size, mime,
		note.UploadedBy, note.IsPublic, note.IsActive, note.CreatedAt, note.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// FindByID returns a note by identifier.
func (r *NoteRepository) FindByID(ctx context.Context, id string) (*models.Note, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE n.id = $1 LIMIT 1`, noteColumns, noteJoin)
	var row noteRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find note by id: %w", err)
	}
	return row.toNote(), nil
}

// List returns notes matching the filter with a total count.
func (r *NoteRepository) List(ctx context.Context, filter models.NoteFilter) ([]models.Note, int, error) {
	baseQuery := noteJoin + ` WHERE n.is_active = TRUE`
	var conditions []string
	var args []interface{}

	if !filter.IncludePrivate {
		conditions = append(conditions, "n.is_public = TRUE")
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("n.subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("n.grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("n.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("n.difficulty = $%d", len(args)+1))
		args = append(args, filter.Difficulty)
	}
	if filter.Tag != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(n.tags)", len(args)+1))
		args = append(args, strings.ToLower(filter.Tag))
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("n.uploaded_by = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(n.title) LIKE $%d OR LOWER(n.description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"created_at":     "n.created_at",
		"title":          "n.title",
		"download_count": "n.download_count",
		"average_rating": "n.average_rating",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "n.created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", noteColumns, baseQuery, sortColumn, sortOrder, pageSize, offset)

	var rows []noteRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	notes := make([]models.Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, *row.toNote())
	}
	return notes, total, nil
}

// Update rewrites the mutable fields of a note, including file metadata.
func (r *NoteRepository) Update(ctx context.Context, note *models.Note) error {
	note.UpdatedAt = time.Now().UTC()

	name, original, url, objectPath, size, mime := fileColumnsOf(note)

	const query = `UPDATE notes SET title = $2, description = $3, subject = $4, grade = $5, category = $6, difficulty = $7, tags = $8, file_name = $9, file_original_name = $10, file_url = $11, file_object_path = $12, file_size = $13, file_mime = $14, is_public = $15, is_active = $16, updated_at = $17 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		note.ID, note.Title, note.Description, note.Subject, note.Grade, note.Category, note.Difficulty, note.Tags,
		name, original, url, objectPath, size, mime,
		note.IsPublic, note.IsActive, note.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return nil
}

// Delete removes a note permanently.
func (r *NoteRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM notes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// IncrementViewCount bumps the view counter.
func (r *NoteRepository) IncrementViewCount(ctx context.Context, id string) error {
	const query = `UPDATE notes SET view_count = view_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

// IncrementDownloadCount bumps the download counter.
func (r *NoteRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	const query = `UPDATE notes SET download_count = download_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// UpdateRatingAggregate writes the derived rating summary onto the note.
func (r *NoteRepository) UpdateRatingAggregate(ctx context.Context, id string, averageRating float64, ratingCount int) error {
	const query = `UPDATE notes SET average_rating = $2, rating_count = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, averageRating, ratingCount, time.Now().UTC()); err != nil {
		return fmt.Errorf("update rating aggregate: %w", err)
	}
	return nil
}

// PlatformTotals returns note/download/view totals over active public notes.
func (r *NoteRepository) PlatformTotals(ctx context.Context) (notes, downloads, views int, err error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(download_count), 0), COALESCE(SUM(view_count), 0) FROM notes WHERE is_active = TRUE AND is_public = TRUE`
	row := r.db.QueryRowContext(ctx, query)
	if scanErr := row.Scan(&notes, &downloads, &views); scanErr != nil {
		return 0, 0, 0, fmt.Errorf("platform note totals: %w", scanErr)
	}
	return notes, downloads, views, nil
}

// CountByCategory tallies active public notes per category.
func (r *NoteRepository) CountByCategory(ctx context.Context) ([]models.CategoryTally, error) {
	const query = `SELECT category, COUNT(*) AS count FROM notes WHERE is_active = TRUE AND is_public = TRUE GROUP BY category ORDER BY count DESC`
	var tallies []models.CategoryTally
	if err := r.db.SelectContext(ctx, &tallies, query); err != nil {
		return nil, fmt.Errorf("count notes by category: %w", err)
	}
	return tallies, nil
}

// CountBySubject tallies active public notes per subject.
func (r *NoteRepository) CountBySubject(ctx context.Context) ([]models.SubjectTally, error) {
	const query = `SELECT subject, COUNT(*) AS count FROM notes WHERE is_active = TRUE AND is_public = TRUE GROUP BY subject ORDER BY count DESC`
	var tallies []models.SubjectTally
	if err := r.db.SelectContext(ctx, &tallies, query); err != nil {
		return nil, fmt.Errorf("count notes by subject: %w", err)
	}
	return tallies, nil
}

// TopDownloaded returns the most downloaded active public notes.
func (r *NoteRepository) TopDownloaded(ctx context.Context, limit int) ([]models.NoteSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT id, title, subject, download_count FROM notes WHERE is_active = TRUE AND is_public = TRUE ORDER BY download_count DESC LIMIT $1`
	var summaries []models.NoteSummary
	if err := r.db.SelectContext(ctx, &summaries, query, limit); err != nil {
		return nil, fmt.Errorf("top downloaded notes: %w", err)
	}
	return summaries, nil
}
