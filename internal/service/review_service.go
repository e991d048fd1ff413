package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartstudy/platform-api/internal/models"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
)

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id string) (*models.Review, error)
	FindByNoteAndStudent(ctx context.Context, noteID, studentID string) (*models.Review, error)
	ListByNote(ctx context.Context, filter models.ReviewFilter) ([]models.Review, int, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id string) error
	Vote(ctx context.Context, id string, helpful bool) error
	Report(ctx context.Context, id, moderatorNote string) error
	Aggregate(ctx context.Context, noteID string) (float64, int, error)
	Distribution(ctx context.Context, noteID string) (map[int]int, error)
	CategoryCounts(ctx context.Context, noteID string) (models.CategoriesStats, error)
}

type reviewNoteRepository interface {
	FindByID(ctx context.Context, id string) (*models.Note, error)
	UpdateRatingAggregate(ctx context.Context, id string, averageRating float64, ratingCount int) error
}

// ReviewService provides review use cases and keeps each note's stored
// rating aggregate in step with its qualifying reviews.
type ReviewService struct {
	repo      reviewRepository
	notes     reviewNoteRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs a ReviewService instance.
func NewReviewService(repo reviewRepository, notes reviewNoteRepository, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{repo: repo, notes: notes, validator: validate, logger: logger}
}

// Create adds a student's review for a note. A second review for the same
// note is rejected; the student is told to update the existing one.
func (s *ReviewService) Create(ctx context.Context, studentID string, req models.CreateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	note, err := s.notes.FindByID(ctx, req.NoteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load note")
	}
	if !note.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
	}

	if _, err := s.repo.FindByNoteAndStudent(ctx, req.NoteID, studentID); err == nil {
		return nil, appErrors.ErrDuplicateReview
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing review")
	}

	review := &models.Review{
		NoteID:     req.NoteID,
		StudentID:  studentID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		IsHelpful:  req.IsHelpful,
		IsClear:    req.IsClear,
		IsComplete: req.IsComplete,
		IsAccurate: req.IsAccurate,
		IsActive:   true,
		IsApproved: true,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateReview
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}

	if err := s.recomputeNoteRating(ctx, req.NoteID); err != nil {
		return nil, err
	}
	return review, nil
}

// ListByNote pages through a note's visible reviews.
func (s *ReviewService) ListByNote(ctx context.Context, filter models.ReviewFilter) ([]models.Review, int, error) {
	reviews, total, err := s.repo.ListByNote(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, total, nil
}

// Update mutates the student's own review and refreshes the note aggregate.
func (s *ReviewService) Update(ctx context.Context, studentID, id string, req models.UpdateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	review, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can modify this review")
	}

	if req.Rating != 0 {
		review.Rating = req.Rating
	}
	if req.Comment != "" {
		review.Comment = req.Comment
	}
	if req.IsHelpful != nil {
		review.IsHelpful = *req.IsHelpful
	}
	if req.IsClear != nil {
		review.IsClear = *req.IsClear
	}
	if req.IsComplete != nil {
		review.IsComplete = *req.IsComplete
	}
	if req.IsAccurate != nil {
		review.IsAccurate = *req.IsAccurate
	}

	if err := s.repo.Update(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review")
	}

	if err := s.recomputeNoteRating(ctx, review.NoteID); err != nil {
		return nil, err
	}
	return review, nil
}

// Delete removes the student's own review and refreshes the note aggregate.
func (s *ReviewService) Delete(ctx context.Context, studentID, id string) error {
	review, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if review.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author can delete this review")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}
	return s.recomputeNoteRating(ctx, review.NoteID)
}

// Vote records a helpfulness vote. Any authenticated user may vote,
// including on their own review.
func (s *ReviewService) Vote(ctx context.Context, id string, req models.VoteReviewRequest) (*models.Review, error) {
	review, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Vote(ctx, id, req.Helpful); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to vote on review")
	}

	review.TotalVotes++
	if req.Helpful {
		review.HelpfulVotes++
	}

	if err := s.recomputeNoteRating(ctx, review.NoteID); err != nil {
		return nil, err
	}
	return review, nil
}

// Report flags a review. The review immediately drops out of statistics and
// the note aggregate is refreshed.
func (s *ReviewService) Report(ctx context.Context, id string, req models.ReportReviewRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	review, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Report(ctx, id, req.Reason); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to report review")
	}
	return s.recomputeNoteRating(ctx, review.NoteID)
}

// Statistics computes the display aggregate for one note from its active
// approved reviews.
func (s *ReviewService) Statistics(ctx context.Context, noteID string) (*models.ReviewStatistics, error) {
	if _, err := s.notes.FindByID(ctx, noteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load note")
	}

	average, total, err := s.repo.Aggregate(ctx, noteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate reviews")
	}
	distribution, err := s.repo.Distribution(ctx, noteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute rating distribution")
	}
	categories, err := s.repo.CategoryCounts(ctx, noteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count categories")
	}

	return &models.ReviewStatistics{
		AverageRating:      roundRating(average),
		TotalReviews:       total,
		RatingDistribution: distribution,
		CategoriesStats:    categories,
	}, nil
}

func (s *ReviewService) find(ctx context.Context, id string) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	return review, nil
}

// recomputeNoteRating rewrites the note's stored aggregate after a review
// mutation. Steps run in a fixed order: aggregate over qualifying reviews,
// round to one decimal, persist on the note.
func (s *ReviewService) recomputeNoteRating(ctx context.Context, noteID string) error {
	average, count, err := s.repo.Aggregate(ctx, noteID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate reviews")
	}
	if err := s.notes.UpdateRatingAggregate(ctx, noteID, roundRating(average), count); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update note rating")
	}
	return nil
}

// roundRating rounds half away from zero to one decimal place.
func roundRating(value float64) float64 {
	return math.Round(value*10) / 10
}
