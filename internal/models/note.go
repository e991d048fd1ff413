package models

import (
	"time"

	"github.com/lib/pq"
)

// NoteCategory classifies the uploaded material.
type NoteCategory string

const (
	CategoryLectureNotes      NoteCategory = "lecture-notes"
	CategoryAssignment        NoteCategory = "assignment"
	CategoryReferenceMaterial NoteCategory = "reference-material"
	CategoryQuiz              NoteCategory = "quiz"
	CategoryExam              NoteCategory = "exam"
	CategoryOther             NoteCategory = "other"
)

// NoteDifficulty grades the material's level.
type NoteDifficulty string

const (
	DifficultyBeginner     NoteDifficulty = "beginner"
	DifficultyIntermediate NoteDifficulty = "intermediate"
	DifficultyAdvanced     NoteDifficulty = "advanced"
)

// FileMeta describes the attachment stored with a note.
type FileMeta struct {
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	URL          string `json:"url,omitempty"`
	ObjectPath   string `json:"object_path"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
}

// Note is a piece of uploaded educational material owned by a teacher.
// AverageRating and RatingCount are derived from active approved reviews
// and rewritten on every review mutation; they are never edited directly.
type Note struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Subject     string         `json:"subject"`
	Grade       string         `json:"grade"`
	Category    NoteCategory   `json:"category"`
	Difficulty  NoteDifficulty `json:"difficulty"`
	Tags        pq.StringArray `json:"tags" swaggertype:"array,string"`

	File *FileMeta `json:"file,omitempty"`

	UploadedBy   string `json:"uploaded_by"`
	UploaderName string `json:"uploader_name,omitempty"`

	IsPublic bool `json:"is_public"`
	IsActive bool `json:"is_active"`

	DownloadCount int     `json:"download_count"`
	ViewCount     int     `json:"view_count"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteFilter captures the list query parameters.
type NoteFilter struct {
	Subject    string
	Grade      string
	Category   string
	Difficulty string
	Tag        string
	TeacherID  string
	Search     string
	// IncludePrivate lists non-public notes too; only set when the caller
	// is the owning teacher.
	IncludePrivate bool
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// CreateNoteRequest carries the multipart form fields for a new note.
type CreateNoteRequest struct {
	Title       string   `form:"title" validate:"required,min=3,max=100"`
	Description string   `form:"description" validate:"required,min=10,max=1000"`
	Subject     string   `form:"subject" validate:"required"`
	Grade       string   `form:"grade" validate:"required"`
	Category    string   `form:"category" validate:"required,oneof=lecture-notes assignment reference-material quiz exam other"`
	Difficulty  string   `form:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Tags        []string `form:"tags"`
	IsPublic    *bool    `form:"is_public"`
}

// UpdateNoteRequest mutates note fields; zero values leave a field alone.
type UpdateNoteRequest struct {
	Title       string   `form:"title" validate:"omitempty,min=3,max=100"`
	Description string   `form:"description" validate:"omitempty,min=10,max=1000"`
	Subject     string   `form:"subject"`
	Grade       string   `form:"grade"`
	Category    string   `form:"category" validate:"omitempty,oneof=lecture-notes assignment reference-material quiz exam other"`
	Difficulty  string   `form:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Tags        []string `form:"tags"`
	IsPublic    *bool    `form:"is_public"`
	IsActive    *bool    `form:"is_active"`
}

// NoteSummary is the compact listing used by stats and top-N responses.
type NoteSummary struct {
	ID            string `json:"id" db:"id"`
	Title         string `json:"title" db:"title"`
	Subject       string `json:"subject" db:"subject"`
	DownloadCount int    `json:"download_count" db:"download_count"`
}

// PlatformNoteStats is the public aggregate served by /notes/stats.
type PlatformNoteStats struct {
	TotalNotes     int            `json:"total_notes"`
	TotalDownloads int            `json:"total_downloads"`
	TotalViews     int            `json:"total_views"`
	ByCategory     []CategoryTally `json:"by_category"`
	BySubject      []SubjectTally  `json:"by_subject"`
	TopDownloaded  []NoteSummary   `json:"top_downloaded"`
}

// CategoryTally counts notes per category.
type CategoryTally struct {
	Category string `json:"category" db:"category"`
	Count    int    `json:"count" db:"count"`
}

// SubjectTally counts per subject value.
type SubjectTally struct {
	Subject string `json:"subject" db:"subject"`
	Count   int    `json:"count" db:"count"`
}
