package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartstudy/platform-api/internal/models"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
)

type mockReviewRepo struct {
	reviews map[string]*models.Review
	byPair  map[string]*models.Review

	avg   float64
	count int

	reported   string
	reportNote string
	deleted    string
	voted      string
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{
		reviews: make(map[string]*models.Review),
		byPair:  make(map[string]*models.Review),
	}
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	review.ID = "r-new"
	m.reviews[review.ID] = review
	m.byPair[review.NoteID+"/"+review.StudentID] = review
	return nil
}

func (m *mockReviewRepo) FindByID(ctx context.Context, id string) (*models.Review, error) {
	if review, ok := m.reviews[id]; ok {
		return review, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReviewRepo) FindByNoteAndStudent(ctx context.Context, noteID, studentID string) (*models.Review, error) {
	if review, ok := m.byPair[noteID+"/"+studentID]; ok {
		return review, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReviewRepo) ListByNote(ctx context.Context, filter models.ReviewFilter) ([]models.Review, int, error) {
	return nil, 0, nil
}

func (m *mockReviewRepo) Update(ctx context.Context, review *models.Review) error {
	m.reviews[review.ID] = review
	return nil
}

func (m *mockReviewRepo) Delete(ctx context.Context, id string) error {
	m.deleted = id
	delete(m.reviews, id)
	return nil
}

func (m *mockReviewRepo) Vote(ctx context.Context, id string, helpful bool) error {
	m.voted = id
	return nil
}

func (m *mockReviewRepo) Report(ctx context.Context, id, moderatorNote string) error {
	m.reported = id
	m.reportNote = moderatorNote
	return nil
}

func (m *mockReviewRepo) Aggregate(ctx context.Context, noteID string) (float64, int, error) {
	return m.avg, m.count, nil
}

func (m *mockReviewRepo) Distribution(ctx context.Context, noteID string) (map[int]int, error) {
	return map[int]int{1: 0, 2: 0, 3: 1, 4: 0, 5: 2}, nil
}

func (m *mockReviewRepo) CategoryCounts(ctx context.Context, noteID string) (models.CategoriesStats, error) {
	return models.CategoriesStats{Helpful: 2, Clear: 1}, nil
}

type mockReviewNoteRepo struct {
	note *models.Note

	ratedNoteID string
	ratedAvg    float64
	ratedCount  int
}

func (m *mockReviewNoteRepo) FindByID(ctx context.Context, id string) (*models.Note, error) {
	if m.note != nil && m.note.ID == id {
		return m.note, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReviewNoteRepo) UpdateRatingAggregate(ctx context.Context, id string, averageRating float64, ratingCount int) error {
	m.ratedNoteID = id
	m.ratedAvg = averageRating
	m.ratedCount = ratingCount
	return nil
}

func newTestReviewService(repo *mockReviewRepo, notes *mockReviewNoteRepo) *ReviewService {
	return NewReviewService(repo, notes, validator.New(), zap.NewNop())
}

func TestReviewServiceCreateRecomputesRating(t *testing.T) {
	repo := newMockReviewRepo()
	repo.avg = 4.25
	repo.count = 2
	notes := &mockReviewNoteRepo{note: &models.Note{ID: "n1", IsActive: true, IsPublic: true}}
	svc := newTestReviewService(repo, notes)

	review, err := svc.Create(context.Background(), "s1", models.CreateReviewRequest{NoteID: "n1", Rating: 5})
	require.NoError(t, err)
	assert.True(t, review.IsActive)
	assert.True(t, review.IsApproved)

	assert.Equal(t, "n1", notes.ratedNoteID)
	assert.Equal(t, 4.3, notes.ratedAvg)
	assert.Equal(t, 2, notes.ratedCount)
}

func TestReviewServiceCreateDuplicate(t *testing.T) {
	repo := newMockReviewRepo()
	notes := &mockReviewNoteRepo{note: &models.Note{ID: "n1", IsActive: true, IsPublic: true}}
	svc := newTestReviewService(repo, notes)

	_, err := svc.Create(context.Background(), "s1", models.CreateReviewRequest{NoteID: "n1", Rating: 4})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "s1", models.CreateReviewRequest{NoteID: "n1", Rating: 5})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateReview.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestReviewServiceUpdateRejectsOtherStudent(t *testing.T) {
	repo := newMockReviewRepo()
	repo.reviews["r1"] = &models.Review{ID: "r1", NoteID: "n1", StudentID: "s1", Rating: 4}
	notes := &mockReviewNoteRepo{note: &models.Note{ID: "n1"}}
	svc := newTestReviewService(repo, notes)

	_, err := svc.Update(context.Background(), "s2", "r1", models.UpdateReviewRequest{Rating: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, notes.ratedNoteID)
}

func TestReviewServiceDeleteRecomputes(t *testing.T) {
	repo := newMockReviewRepo()
	repo.reviews["r1"] = &models.Review{ID: "r1", NoteID: "n1", StudentID: "s1"}
	repo.avg = 0
	repo.count = 0
	notes := &mockReviewNoteRepo{note: &models.Note{ID: "n1"}}
	svc := newTestReviewService(repo, notes)

	require.NoError(t, svc.Delete(context.Background(), "s1", "r1"))
	assert.Equal(t, "r1", repo.deleted)
	assert.Equal(t, "n1", notes.ratedNoteID)
	assert.Equal(t, 0.0, notes.ratedAvg)
	assert.Equal(t, 0, notes.ratedCount)
}

func TestReviewServiceReportExcludesFromStats(t *testing.T) {
	repo := newMockReviewRepo()
	repo.reviews["r1"] = &models.Review{ID: "r1", NoteID: "n1", StudentID: "s1"}
	repo.avg = 3.0
	repo.count = 1
	notes := &mockReviewNoteRepo{note: &models.Note{ID: "n1"}}
	svc := newTestReviewService(repo, notes)

	err := svc.Report(context.Background(), "r1", models.ReportReviewRequest{Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, "r1", repo.reported)
	assert.Equal(t, "spam", repo.reportNote)
	assert.Equal(t, "n1", notes.ratedNoteID)
}

func TestReviewServiceStatisticsRoundsAverage(t *testing.T) {
	repo := newMockReviewRepo()
	repo.avg = 4.3333333
	repo.count = 3
	notes := &mockReviewNoteRepo{note: &models.Note{ID: "n1"}}
	svc := newTestReviewService(repo, notes)

	stats, err := svc.Statistics(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, 4.3, stats.AverageRating)
	assert.Equal(t, 3, stats.TotalReviews)
	assert.Equal(t, 2, stats.RatingDistribution[5])
	assert.Equal(t, 2, stats.CategoriesStats.Helpful)
}

func TestRoundRating(t *testing.T) {
	cases := map[float64]float64{
		0:         0,
		4.25:      4.3,
		4.24:      4.2,
		3.9999:    4.0,
		4.3333333: 4.3,
	}
	for input, expected := range cases {
		assert.Equal(t, expected, roundRating(input))
	}
}
