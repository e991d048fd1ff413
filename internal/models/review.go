package models

import "time"

// Review is one student's feedback on one note. At most one review exists
// per (note, student) pair, enforced by a unique index.
type Review struct {
	ID          string `json:"id"`
	NoteID      string `json:"note_id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`

	Rating  int    `json:"rating"`
	Comment string `json:"comment"`

	IsHelpful  bool `json:"is_helpful"`
	IsClear    bool `json:"is_clear"`
	IsComplete bool `json:"is_complete"`
	IsAccurate bool `json:"is_accurate"`

	IsActive      bool    `json:"is_active"`
	IsApproved    bool    `json:"is_approved"`
	ModeratorNote *string `json:"moderator_note,omitempty"`

	HelpfulVotes int `json:"helpful_votes"`
	TotalVotes   int `json:"total_votes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateReviewRequest creates a review for a note.
type CreateReviewRequest struct {
	NoteID  string `json:"note_id" validate:"required"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=500"`

	IsHelpful  bool `json:"is_helpful"`
	IsClear    bool `json:"is_clear"`
	IsComplete bool `json:"is_complete"`
	IsAccurate bool `json:"is_accurate"`
}

// UpdateReviewRequest mutates the owning student's review.
type UpdateReviewRequest struct {
	Rating  int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=500"`

	IsHelpful  *bool `json:"is_helpful,omitempty"`
	IsClear    *bool `json:"is_clear,omitempty"`
	IsComplete *bool `json:"is_complete,omitempty"`
	IsAccurate *bool `json:"is_accurate,omitempty"`
}

// VoteReviewRequest records a helpfulness vote from any authenticated user.
type VoteReviewRequest struct {
	Helpful bool `json:"helpful"`
}

// ReportReviewRequest soft-removes a review from statistics.
type ReportReviewRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CategoriesStats counts true category flags across qualifying reviews.
type CategoriesStats struct {
	Helpful  int `json:"helpful"`
	Clear    int `json:"clear"`
	Complete int `json:"complete"`
	Accurate int `json:"accurate"`
}

// ReviewStatistics is the display aggregate for one note, derived from
// active approved reviews only.
type ReviewStatistics struct {
	AverageRating      float64         `json:"average_rating"`
	TotalReviews       int             `json:"total_reviews"`
	RatingDistribution map[int]int     `json:"rating_distribution"`
	CategoriesStats    CategoriesStats `json:"categories_stats"`
}

// ReviewFilter pages through a note's reviews.
type ReviewFilter struct {
	NoteID   string
	Page     int
	PageSize int
}
