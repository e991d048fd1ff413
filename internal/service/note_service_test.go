package service

import (
	"context"
	"database/sql"
	"io"
	"mime/multipart"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartstudy/platform-api/internal/models"
	"github.com/smartstudy/platform-api/pkg/config"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
	"github.com/smartstudy/platform-api/pkg/storage"
)

type mockNoteRepo struct {
	notes map[string]*models.Note

	created          *models.Note
	updated          *models.Note
	deleted          string
	viewsIncremented int
	downloadsBumped  int
}

func newMockNoteRepo(notes ...*models.Note) *mockNoteRepo {
	repo := &mockNoteRepo{notes: make(map[string]*models.Note)}
	for _, note := range notes {
		repo.notes[note.ID] = note
	}
	return repo
}

func (m *mockNoteRepo) Create(ctx context.Context, note *models.Note) error {
	m.created = note
	m.notes[note.ID] = note
	return nil
}

func (m *mockNoteRepo) FindByID(ctx context.Context, id string) (*models.Note, error) {
	if note, ok := m.notes[id]; ok {
		return note, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNoteRepo) List(ctx context.Context, filter models.NoteFilter) ([]models.Note, int, error) {
	return nil, 0, nil
}

func (m *mockNoteRepo) Update(ctx context.Context, note *models.Note) error {
	m.updated = note
	return nil
}

func (m *mockNoteRepo) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return nil
}

func (m *mockNoteRepo) IncrementViewCount(ctx context.Context, id string) error {
	m.viewsIncremented++
	return nil
}

func (m *mockNoteRepo) IncrementDownloadCount(ctx context.Context, id string) error {
	m.downloadsBumped++
	return nil
}

func (m *mockNoteRepo) PlatformTotals(ctx context.Context) (int, int, int, error) {
	return 3, 10, 42, nil
}

func (m *mockNoteRepo) CountByCategory(ctx context.Context) ([]models.CategoryTally, error) {
	return []models.CategoryTally{{Category: "lecture-notes", Count: 2}}, nil
}

func (m *mockNoteRepo) CountBySubject(ctx context.Context) ([]models.SubjectTally, error) {
	return []models.SubjectTally{{Subject: "Math", Count: 3}}, nil
}

func (m *mockNoteRepo) TopDownloaded(ctx context.Context, limit int) ([]models.NoteSummary, error) {
	return []models.NoteSummary{{ID: "n1", Title: "Algebra", DownloadCount: 10}}, nil
}

type mockNoteReviews struct {
	deletedNote string
}

func (m *mockNoteReviews) DeleteByNote(ctx context.Context, noteID string) error {
	m.deletedNote = noteID
	return nil
}

type mockNoteDownloads struct {
	records []*models.DownloadRecord
}

func (m *mockNoteDownloads) Create(ctx context.Context, record *models.DownloadRecord) error {
	m.records = append(m.records, record)
	return nil
}

type mockStorage struct {
	deleted []string
}

func (m *mockStorage) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (*storage.StoredObject, error) {
	return &storage.StoredObject{ObjectPath: objectPath, PublicURL: "http://files.local/" + objectPath}, nil
}

func (m *mockStorage) Delete(ctx context.Context, objectPath string) error {
	m.deleted = append(m.deleted, objectPath)
	return nil
}

func (m *mockStorage) DownloadTarget(objectPath, downloadName string) storage.Target {
	return storage.Target{RedirectURL: "http://files.local/" + objectPath, DownloadName: downloadName}
}

func newTestNoteService(repo *mockNoteRepo, reviews *mockNoteReviews, downloads *mockNoteDownloads, store *mockStorage) *NoteService {
	return NewNoteService(repo, reviews, downloads, store, nil, validator.New(), zap.NewNop(), config.UploadConfig{
		MaxFileSizeBytes:  10 * 1024 * 1024,
		AllowedExtensions: []string{"pdf", "doc", "docx", "txt", "jpg", "jpeg", "png", "ppt", "pptx"},
	})
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func TestNoteServiceCreateWithoutFile(t *testing.T) {
	repo := newMockNoteRepo()
	svc := newTestNoteService(repo, &mockNoteReviews{}, &mockNoteDownloads{}, &mockStorage{})

	note, err := svc.Create(context.Background(), "t1", models.CreateNoteRequest{
		Title:       "Algebra Basics",
		Description: "Introductory algebra material",
		Subject:     "Math",
		Grade:       "10",
		Category:    "lecture-notes",
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, note.File)
	assert.True(t, note.IsPublic)
	assert.True(t, note.IsActive)
	assert.Equal(t, models.DifficultyIntermediate, note.Difficulty)
	assert.Equal(t, "t1", repo.created.UploadedBy)
}

func TestNoteServiceCreateLowercasesTags(t *testing.T) {
	repo := newMockNoteRepo()
	svc := newTestNoteService(repo, &mockNoteReviews{}, &mockNoteDownloads{}, &mockStorage{})

	note, err := svc.Create(context.Background(), "t1", models.CreateNoteRequest{
		Title:       "Algebra Basics",
		Description: "Introductory algebra material",
		Subject:     "Math",
		Grade:       "10",
		Category:    "lecture-notes",
		Tags:        []string{"Algebra", " MATH ", ""},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra", "math"}, note.Tags)
	assert.Equal(t, []string{"algebra", "math"}, repo.created.Tags)
}

func TestNoteServiceUpdateLowercasesTags(t *testing.T) {
	note := &models.Note{ID: "n1", UploadedBy: "t1", IsActive: true, IsPublic: true, Tags: []string{"algebra"}}
	repo := newMockNoteRepo(note)
	svc := newTestNoteService(repo, &mockNoteReviews{}, &mockNoteDownloads{}, &mockStorage{})

	updated, err := svc.Update(context.Background(), "t1", "n1", models.UpdateNoteRequest{
		Tags: []string{"Geometry", "PROOFS"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"geometry", "proofs"}, updated.Tags)
	assert.Equal(t, []string{"geometry", "proofs"}, repo.updated.Tags)
}

func TestNoteServiceCreateRejectsOversizedFile(t *testing.T) {
	svc := newTestNoteService(newMockNoteRepo(), &mockNoteReviews{}, &mockNoteDownloads{}, &mockStorage{})

	file := &multipart.FileHeader{Filename: "big.pdf", Size: 11 * 1024 * 1024}
	_, err := svc.Create(context.Background(), "t1", models.CreateNoteRequest{
		Title:       "Algebra Basics",
		Description: "Introductory algebra material",
		Subject:     "Math",
		Grade:       "10",
		Category:    "lecture-notes",
	}, file)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestNoteServiceCreateRejectsDisallowedExtension(t *testing.T) {
	svc := newTestNoteService(newMockNoteRepo(), &mockNoteReviews{}, &mockNoteDownloads{}, &mockStorage{})

	file := &multipart.FileHeader{Filename: "malware.exe", Size: 100}
	_, err := svc.Create(context.Background(), "t1", models.CreateNoteRequest{
		Title:       "Algebra Basics",
		Description: "Introductory algebra material",
		Subject:     "Math",
		Grade:       "10",
		Category:    "lecture-notes",
	}, file)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrFileType.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestNoteServiceUpdateRejectsNonOwner(t *testing.T) {
	note := &models.Note{ID: "n1", UploadedBy: "t1", IsActive: true, IsPublic: true}
	svc := newTestNoteService(newMockNoteRepo(note), &mockNoteReviews{}, &mockNoteDownloads{}, &mockStorage{})

	_, err := svc.Update(context.Background(), "t2", "n1", models.UpdateNoteRequest{Title: "Hijacked"}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestNoteServiceDeleteCascades(t *testing.T) {
	note := &models.Note{
		ID:         "n1",
		UploadedBy: "t1",
		File:       &models.FileMeta{ObjectPath: "notes/n1/file.pdf"},
	}
	repo := newMockNoteRepo(note)
	reviews := &mockNoteReviews{}
	store := &mockStorage{}
	svc := newTestNoteService(repo, reviews, &mockNoteDownloads{}, store)

	require.NoError(t, svc.Delete(context.Background(), "t1", "n1"))
	assert.Equal(t, "n1", repo.deleted)
	assert.Equal(t, "n1", reviews.deletedNote)
	assert.Equal(t, []string{"notes/n1/file.pdf"}, store.deleted)
}

func TestNoteServiceGetHidesPrivateNote(t *testing.T) {
	note := &models.Note{ID: "n1", UploadedBy: "t1", IsActive: true, IsPublic: false}
	svc := newTestNoteService(newMockNoteRepo(note), &mockNoteReviews{}, &mockNoteDownloads{}, &mockStorage{})

	_, err := svc.Get(context.Background(), "n1", studentClaims("s1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	got, err := svc.Get(context.Background(), "n1", owner)
	require.NoError(t, err)
	assert.Equal(t, "n1", got.ID)
}

func TestNoteServiceDownloadWithoutFile(t *testing.T) {
	note := &models.Note{ID: "n1", UploadedBy: "t1", IsActive: true, IsPublic: true}
	svc := newTestNoteService(newMockNoteRepo(note), &mockNoteReviews{}, &mockNoteDownloads{}, &mockStorage{})

	_, err := svc.Download(context.Background(), studentClaims("s1"), "n1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNoteServiceDownloadRecordsSnapshot(t *testing.T) {
	note := &models.Note{
		ID:         "n1",
		Title:      "Algebra Basics",
		Subject:    "Math",
		Grade:      "10",
		UploadedBy: "t1",
		IsActive:   true,
		IsPublic:   true,
		File: &models.FileMeta{
			OriginalName: "algebra.pdf",
			ObjectPath:   "notes/n1/algebra.pdf",
			URL:          "http://files.local/notes/n1/algebra.pdf",
			Size:         2048,
			MimeType:     "application/pdf",
		},
	}
	repo := newMockNoteRepo(note)
	downloads := &mockNoteDownloads{}
	svc := newTestNoteService(repo, &mockNoteReviews{}, downloads, &mockStorage{})

	target, err := svc.Download(context.Background(), studentClaims("s1"), "n1")
	require.NoError(t, err)
	assert.Contains(t, target.RedirectURL, "notes/n1/algebra.pdf")
	assert.Equal(t, "algebra.pdf", target.DownloadName)
	assert.Equal(t, 1, repo.downloadsBumped)

	require.Len(t, downloads.records, 1)
	record := downloads.records[0]
	assert.Equal(t, "s1", record.StudentID)
	assert.Equal(t, "Algebra Basics", record.NoteTitle)
	assert.Equal(t, "Math", record.NoteSubject)
	assert.Equal(t, "t1", record.UploadedBy)
	assert.Equal(t, int64(2048), record.FileSize)
}

func TestNoteServiceDownloadByTeacherSkipsHistory(t *testing.T) {
	note := &models.Note{
		ID:         "n1",
		UploadedBy: "t1",
		IsActive:   true,
		IsPublic:   false,
		File:       &models.FileMeta{OriginalName: "algebra.pdf", ObjectPath: "notes/n1/algebra.pdf"},
	}
	repo := newMockNoteRepo(note)
	downloads := &mockNoteDownloads{}
	svc := newTestNoteService(repo, &mockNoteReviews{}, downloads, &mockStorage{})

	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	target, err := svc.Download(context.Background(), owner, "n1")
	require.NoError(t, err)
	assert.Equal(t, "algebra.pdf", target.DownloadName)
	assert.Equal(t, 1, repo.downloadsBumped)
	assert.Empty(t, downloads.records)
}

func TestNoteServiceStats(t *testing.T) {
	svc := newTestNoteService(newMockNoteRepo(), &mockNoteReviews{}, &mockNoteDownloads{}, &mockStorage{})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalNotes)
	assert.Equal(t, 10, stats.TotalDownloads)
	assert.Equal(t, 42, stats.TotalViews)
	require.Len(t, stats.TopDownloaded, 1)
}
