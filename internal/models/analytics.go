package models

import "time"

// MonthTally counts events per calendar month.
type MonthTally struct {
	Month string `json:"month" db:"month"`
	Count int    `json:"count" db:"count"`
}

// SubjectAverage is a per-subject mean rating, rounded to one decimal.
type SubjectAverage struct {
	Subject       string  `json:"subject"`
	AverageRating float64 `json:"average_rating"`
}

// Streak describes consecutive-day download activity. Current counts
// backward from today and is zero when today has no download; Max is the
// longest run anywhere in the history.
type Streak struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// StudentProgress is the per-student analytics payload.
type StudentProgress struct {
	TotalDownloads   int              `json:"total_downloads"`
	DistinctSubjects int              `json:"distinct_subjects"`
	DistinctGrades   int              `json:"distinct_grades"`
	BySubject        []SubjectTally   `json:"by_subject"`
	Monthly          []MonthTally     `json:"monthly"`
	Streak           Streak           `json:"streak"`
	SubjectRatings   []SubjectAverage `json:"subject_ratings"`
	RecentActivity   []DownloadRecord `json:"recent_activity"`
}

// TeacherAnalytics summarises a teacher's catalogue performance.
type TeacherAnalytics struct {
	TotalNotes       int            `json:"total_notes"`
	TotalDownloads   int            `json:"total_downloads"`
	TotalViews       int            `json:"total_views"`
	NotesBySubject   []SubjectTally `json:"notes_by_subject"`
	MonthlyDownloads []MonthTally   `json:"monthly_downloads"`
	TopNotes         []NoteSummary  `json:"top_notes"`
	TotalReviews     int            `json:"total_reviews"`
	AverageRating    float64        `json:"average_rating"`
	DistinctStudents int            `json:"distinct_students"`
}

// SystemMetrics is a lightweight instrumentation snapshot served alongside
// the Prometheus endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// PlatformStats is the public platform-wide counter set.
type PlatformStats struct {
	TotalTeachers  int `json:"total_teachers"`
	TotalStudents  int `json:"total_students"`
	TotalNotes     int `json:"total_notes"`
	TotalReviews   int `json:"total_reviews"`
	TotalDownloads int `json:"total_downloads"`
}
