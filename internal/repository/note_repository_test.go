package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstudy/platform-api/internal/models"
)

func noteRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "subject", "grade", "category", "difficulty", "tags",
		"file_name", "file_original_name", "file_url", "file_object_path", "file_size", "file_mime",
		"uploaded_by", "uploader_name", "is_public", "is_active",
		"download_count", "view_count", "average_rating", "rating_count", "created_at", "updated_at",
	})
}

func TestNoteFindByIDWithFile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	now := time.Now()
	rows := noteRows().
		AddRow("n1", "Algebra Basics", "Introductory algebra", "Math", "10", "lecture-notes", "intermediate", "{algebra}",
			"n1-1.pdf", "algebra.pdf", "http://files.local/notes/n1/n1-1.pdf", "notes/n1/n1-1.pdf", 2048, "application/pdf",
			"t1", "Jane Teacher", true, true,
			3, 7, 4.3, 2, now, now)
	mock.ExpectQuery("SELECT .+ FROM notes n JOIN users u ON u.id = n.uploaded_by WHERE n.id = .+ LIMIT 1").
		WithArgs("n1").
		WillReturnRows(rows)

	note, err := repo.FindByID(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "Algebra Basics", note.Title)
	assert.Equal(t, "Jane Teacher", note.UploaderName)
	require.NotNil(t, note.File)
	assert.Equal(t, "algebra.pdf", note.File.OriginalName)
	assert.Equal(t, int64(2048), note.File.Size)
	assert.Equal(t, 4.3, note.AverageRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteFindByIDWithoutFile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	now := time.Now()
	rows := noteRows().
		AddRow("n2", "Geometry", "Shapes and proofs", "Math", "9", "assignment", "beginner", "{}",
			nil, nil, nil, nil, nil, nil,
			"t1", "Jane Teacher", true, true,
			0, 0, 0.0, 0, now, now)
	mock.ExpectQuery("SELECT .+ FROM notes n JOIN users u ON u.id = n.uploaded_by WHERE n.id = .+ LIMIT 1").
		WithArgs("n2").
		WillReturnRows(rows)

	note, err := repo.FindByID(context.Background(), "n2")
	require.NoError(t, err)
	assert.Nil(t, note.File)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteListFiltersSubject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	now := time.Now()
	listRows := noteRows().
		AddRow("n1", "Algebra Basics", "Introductory algebra", "Math", "10", "lecture-notes", "intermediate", "{}",
			nil, nil, nil, nil, nil, nil,
			"t1", "Jane Teacher", true, true,
			3, 7, 4.3, 2, now, now)
	mock.ExpectQuery("SELECT .+ WHERE n.is_active = TRUE AND n.is_public = TRUE AND n.subject = .+ ORDER BY n.created_at DESC LIMIT 20 OFFSET 0").
		WithArgs("Math").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("Math").
		WillReturnRows(countRows)

	notes, total, err := repo.List(context.Background(), models.NoteFilter{Subject: "Math"})
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteIncrementDownloadCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notes SET download_count = download_count + 1 WHERE id = $1")).
		WithArgs("n1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementDownloadCount(context.Background(), "n1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteUpdateRatingAggregate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	mock.ExpectExec("UPDATE notes SET average_rating").
		WithArgs("n1", 4.3, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateRatingAggregate(context.Background(), "n1", 4.3, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}
