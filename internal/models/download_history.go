package models

import "time"

// DownloadRecord is an append-only audit entry for one download event.
// Note fields are snapshotted at download time so the record stays
// meaningful after the source note changes or disappears.
type DownloadRecord struct {
	ID        string `json:"id" db:"id"`
	NoteID    string `json:"note_id" db:"note_id"`
	StudentID string `json:"student_id" db:"student_id"`

	NoteTitle   string `json:"note_title" db:"note_title"`
	NoteSubject string `json:"note_subject" db:"note_subject"`
	NoteGrade   string `json:"note_grade" db:"note_grade"`
	UploadedBy  string `json:"uploaded_by" db:"uploaded_by"`

	FileName string `json:"file_name" db:"file_name"`
	FileURL  string `json:"file_url,omitempty" db:"file_url"`
	FileSize int64  `json:"file_size" db:"file_size"`
	FileMime string `json:"file_mime" db:"file_mime"`

	DownloadedAt time.Time `json:"downloaded_at" db:"downloaded_at"`
}

// LogDownloadRequest manually records a download for the calling student.
type LogDownloadRequest struct {
	NoteID string `json:"note_id" validate:"required"`
}

// DownloadFilter pages through a student's history.
type DownloadFilter struct {
	StudentID string
	Page      int
	PageSize  int
}

// DownloadStats summarises one student's history.
type DownloadStats struct {
	TotalDownloads   int `json:"total_downloads"`
	DistinctSubjects int `json:"distinct_subjects"`
	Last30Days       int `json:"last_30_days"`
}
