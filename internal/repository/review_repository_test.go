package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewAggregate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	rows := sqlmock.NewRows([]string{"avg", "count"}).AddRow(4.25, 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE note_id = $1 AND is_active = TRUE AND is_approved = TRUE")).
		WithArgs("n1").
		WillReturnRows(rows)

	avg, count, err := repo.Aggregate(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, 4.25, avg)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewAggregateEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	rows := sqlmock.NewRows([]string{"avg", "count"}).AddRow(0.0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews")).
		WithArgs("n1").
		WillReturnRows(rows)

	avg, count, err := repo.Aggregate(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewDistributionFillsMissingStars(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	rows := sqlmock.NewRows([]string{"rating", "count"}).
		AddRow(5, 2).
		AddRow(3, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rating, COUNT(*) FROM reviews WHERE note_id = $1 AND is_active = TRUE AND is_approved = TRUE GROUP BY rating")).
		WithArgs("n1").
		WillReturnRows(rows)

	distribution, err := repo.Distribution(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 1, 4: 0, 5: 2}, distribution)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewReport(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("UPDATE reviews SET is_approved = FALSE").
		WithArgs("r1", "spam", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Report(context.Background(), "r1", "spam"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewVoteHelpful(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("UPDATE reviews SET helpful_votes").
		WithArgs("r1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Vote(context.Background(), "r1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}
