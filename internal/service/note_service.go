package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartstudy/platform-api/internal/models"
	"github.com/smartstudy/platform-api/pkg/config"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
	"github.com/smartstudy/platform-api/pkg/storage"
)

type noteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	FindByID(ctx context.Context, id string) (*models.Note, error)
	List(ctx context.Context, filter models.NoteFilter) ([]models.Note, int, error)
	Update(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id string) error
	IncrementViewCount(ctx context.Context, id string) error
	IncrementDownloadCount(ctx context.Context, id string) error
	PlatformTotals(ctx context.Context) (notes, downloads, views int, err error)
	CountByCategory(ctx context.Context) ([]models.CategoryTally, error)
	CountBySubject(ctx context.Context) ([]models.SubjectTally, error)
	TopDownloaded(ctx context.Context, limit int) ([]models.NoteSummary, error)
}

type noteReviewRepository interface {
	DeleteByNote(ctx context.Context, noteID string) error
}

type noteDownloadRepository interface {
	Create(ctx context.Context, record *models.DownloadRecord) error
}

// NoteService provides note catalogue use cases including file handling.
type NoteService struct {
	repo      noteRepository
	reviews   noteReviewRepository
	downloads noteDownloadRepository
	storage   storage.Provider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	uploads   config.UploadConfig
}

// NewNoteService constructs a NoteService instance.
func NewNoteService(repo noteRepository, reviews noteReviewRepository, downloads noteDownloadRepository, provider storage.Provider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, uploads config.UploadConfig) *NoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NoteService{
		repo:      repo,
		reviews:   reviews,
		downloads: downloads,
		storage:   provider,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		uploads:   uploads,
	}
}

// Create stores a new note for the teacher, with an optional attachment.
func (s *NoteService) Create(ctx context.Context, teacherID string, req models.CreateNoteRequest, file *multipart.FileHeader) (*models.Note, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	note := &models.Note{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Subject:     req.Subject,
		Grade:       req.Grade,
		Category:    models.NoteCategory(req.Category),
		Difficulty:  models.NoteDifficulty(req.Difficulty),
		Tags:        normalizeTags(req.Tags),
		UploadedBy:  teacherID,
		IsPublic:    true,
		IsActive:    true,
	}
	if note.Difficulty == "" {
		note.Difficulty = models.DifficultyIntermediate
	}
	if req.IsPublic != nil {
		note.IsPublic = *req.IsPublic
	}

	if file != nil {
		meta, err := s.storeFile(ctx, note.ID, file)
		if err != nil {
			return nil, err
		}
		note.File = meta
	}

	if err := s.repo.Create(ctx, note); err != nil {
		s.cleanupFile(ctx, note.File)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create note")
	}
	return note, nil
}

// Get returns one note, enforcing visibility, and bumps the view counter.
func (s *NoteService) Get(ctx context.Context, id string, viewer *models.JWTClaims) (*models.Note, error) {
	note, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(note, viewer) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
	}

	if err := s.repo.IncrementViewCount(ctx, note.ID); err != nil {
		s.logger.Warn("failed to increment view count", zap.String("note_id", note.ID), zap.Error(err))
	} else {
		note.ViewCount++
	}
	return note, nil
}

// List pages through the catalogue. Private notes only appear when the
// caller filters on their own uploads.
func (s *NoteService) List(ctx context.Context, filter models.NoteFilter, viewer *models.JWTClaims) ([]models.Note, int, error) {
	filter.IncludePrivate = viewer != nil && filter.TeacherID != "" && filter.TeacherID == viewer.UserID
	notes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	return notes, total, nil
}

// ListMine returns the teacher's own notes including private ones.
func (s *NoteService) ListMine(ctx context.Context, teacherID string, filter models.NoteFilter) ([]models.Note, int, error) {
	filter.TeacherID = teacherID
	filter.IncludePrivate = true
	notes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	return notes, total, nil
}

// Update mutates note fields and optionally replaces the attachment. Only
// the owning teacher may update.
func (s *NoteService) Update(ctx context.Context, userID, id string, req models.UpdateNoteRequest, file *multipart.FileHeader) (*models.Note, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	note, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.UploadedBy != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the uploader can modify this note")
	}

	if req.Title != "" {
		note.Title = req.Title
	}
	if req.Description != "" {
		note.Description = req.Description
	}
	if req.Subject != "" {
		note.Subject = req.Subject
	}
	if req.Grade != "" {
		note.Grade = req.Grade
	}
	if req.Category != "" {
		note.Category = models.NoteCategory(req.Category)
	}
	if req.Difficulty != "" {
		note.Difficulty = models.NoteDifficulty(req.Difficulty)
	}
	if req.Tags != nil {
		note.Tags = normalizeTags(req.Tags)
	}
	if req.IsPublic != nil {
		note.IsPublic = *req.IsPublic
	}
	if req.IsActive != nil {
		note.IsActive = *req.IsActive
	}

	if file != nil {
		meta, err := s.storeFile(ctx, note.ID, file)
		if err != nil {
			return nil, err
		}
		old := note.File
		note.File = meta
		s.cleanupFile(ctx, old)
	}

	if err := s.repo.Update(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update note")
	}
	return note, nil
}

// Delete removes the note, its reviews and its stored file. Only the owning
// teacher may delete. File removal is best effort.
func (s *NoteService) Delete(ctx context.Context, userID, id string) error {
	note, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if note.UploadedBy != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader can delete this note")
	}

	if err := s.reviews.DeleteByNote(ctx, note.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete note reviews")
	}
	if err := s.repo.Delete(ctx, note.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete note")
	}
	s.cleanupFile(ctx, note.File)
	return nil
}

// Download resolves the serving target for a note's file and bumps the
// download counter. Student callers additionally get a snapshot record
// appended to their history.
func (s *NoteService) Download(ctx context.Context, caller *models.JWTClaims, noteID string) (storage.Target, error) {
	note, err := s.find(ctx, noteID)
	if err != nil {
		return storage.Target{}, err
	}
	if !s.canView(note, caller) {
		return storage.Target{}, appErrors.Clone(appErrors.ErrNotFound, "note not found")
	}
	if note.File == nil {
		return storage.Target{}, appErrors.Clone(appErrors.ErrNotFound, "note has no attached file")
	}

	if err := s.repo.IncrementDownloadCount(ctx, note.ID); err != nil {
		s.logger.Warn("failed to increment download count", zap.String("note_id", note.ID), zap.Error(err))
	}

	if caller.Role == models.RoleStudent {
		record := snapshotRecord(note, caller.UserID)
		if err := s.downloads.Create(ctx, record); err != nil {
			s.logger.Warn("failed to record download", zap.String("note_id", note.ID), zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordDownload()
	}

	return s.storage.DownloadTarget(note.File.ObjectPath, note.File.OriginalName), nil
}

// LogDownload appends a history record without serving the file, used when
// the client fetched the file straight from storage.
func (s *NoteService) LogDownload(ctx context.Context, student *models.JWTClaims, req models.LogDownloadRequest) (*models.DownloadRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	note, err := s.find(ctx, req.NoteID)
	if err != nil {
		return nil, err
	}
	if !s.canView(note, student) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
	}

	if err := s.repo.IncrementDownloadCount(ctx, note.ID); err != nil {
		s.logger.Warn("failed to increment download count", zap.String("note_id", note.ID), zap.Error(err))
	}

	record := snapshotRecord(note, student.UserID)
	if err := s.downloads.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record download")
	}
	return record, nil
}

// Stats returns the public platform-wide note aggregate.
func (s *NoteService) Stats(ctx context.Context) (*models.PlatformNoteStats, error) {
	notes, downloads, views, err := s.repo.PlatformTotals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute note totals")
	}
	byCategory, err := s.repo.CountByCategory(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count by category")
	}
	bySubject, err := s.repo.CountBySubject(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count by subject")
	}
	top, err := s.repo.TopDownloaded(ctx, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank notes")
	}
	return &models.PlatformNoteStats{
		TotalNotes:     notes,
		TotalDownloads: downloads,
		TotalViews:     views,
		ByCategory:     byCategory,
		BySubject:      bySubject,
		TopDownloaded:  top,
	}, nil
}

func (s *NoteService) find(ctx context.Context, id string) (*models.Note, error) {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load note")
	}
	return note, nil
}

// canView hides inactive and private notes from everyone but the uploader.
func (s *NoteService) canView(note *models.Note, viewer *models.JWTClaims) bool {
	if viewer != nil && note.UploadedBy == viewer.UserID {
		return true
	}
	return note.IsActive && note.IsPublic
}

// storeFile validates the upload constraints and persists the attachment.
func (s *NoteService) storeFile(ctx context.Context, noteID string, file *multipart.FileHeader) (*models.FileMeta, error) {
	if file.Size > s.uploads.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds the %d byte limit", s.uploads.MaxFileSizeBytes))
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
	if !extensionAllowed(ext, s.uploads.AllowedExtensions) {
		return nil, appErrors.Clone(appErrors.ErrFileType, fmt.Sprintf("file type %q is not allowed", ext))
	}

	src, err := file.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer src.Close() //nolint:errcheck

	storedName := fmt.Sprintf("%s-%d.%s", noteID, time.Now().UnixNano(), ext)
	objectPath := fmt.Sprintf("notes/%s/%s", noteID, storedName)
	contentType := file.Header.Get("Content-Type")

	obj, err := s.storage.Upload(ctx, objectPath, contentType, src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	if s.metrics != nil {
		s.metrics.RecordUpload()
	}

	return &models.FileMeta{
		Name:         storedName,
		OriginalName: file.Filename,
		URL:          obj.PublicURL,
		ObjectPath:   obj.ObjectPath,
		Size:         file.Size,
		MimeType:     contentType,
	}, nil
}

// cleanupFile removes a stored object, logging rather than failing when the
// provider errors.
func (s *NoteService) cleanupFile(ctx context.Context, meta *models.FileMeta) {
	if meta == nil {
		return
	}
	if err := s.storage.Delete(ctx, meta.ObjectPath); err != nil {
		s.logger.Warn("failed to delete stored file", zap.String("object_path", meta.ObjectPath), zap.Error(err))
	}
}

func snapshotRecord(note *models.Note, studentID string) *models.DownloadRecord {
	record := &models.DownloadRecord{
		ID:          uuid.NewString(),
		NoteID:      note.ID,
		StudentID:   studentID,
		NoteTitle:   note.Title,
		NoteSubject: note.Subject,
		NoteGrade:   note.Grade,
		UploadedBy:  note.UploadedBy,
	}
	if note.File != nil {
		record.FileName = note.File.OriginalName
		record.FileURL = note.File.URL
		record.FileSize = note.File.Size
		record.FileMime = note.File.MimeType
	}
	return record
}

// normalizeTags lowercases and trims tags so the tag filter matches
// regardless of the casing submitted.
func normalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}
