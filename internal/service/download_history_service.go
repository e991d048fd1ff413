package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/smartstudy/platform-api/internal/models"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
)

type downloadHistoryRepository interface {
	FindByID(ctx context.Context, id string) (*models.DownloadRecord, error)
	ListByStudent(ctx context.Context, filter models.DownloadFilter) ([]models.DownloadRecord, int, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, studentID string) (*models.DownloadStats, error)
}

// DownloadHistoryService exposes a student's download log.
type DownloadHistoryService struct {
	repo   downloadHistoryRepository
	logger *zap.Logger
}

// NewDownloadHistoryService constructs a DownloadHistoryService instance.
func NewDownloadHistoryService(repo downloadHistoryRepository, logger *zap.Logger) *DownloadHistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadHistoryService{repo: repo, logger: logger}
}

// List pages through the student's own history, newest first.
func (s *DownloadHistoryService) List(ctx context.Context, filter models.DownloadFilter) ([]models.DownloadRecord, int, error) {
	records, total, err := s.repo.ListByStudent(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list download history")
	}
	return records, total, nil
}

// Stats summarises the student's history.
func (s *DownloadHistoryService) Stats(ctx context.Context, studentID string) (*models.DownloadStats, error) {
	stats, err := s.repo.Stats(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute download stats")
	}
	return stats, nil
}

// Delete removes one record from the student's own history.
func (s *DownloadHistoryService) Delete(ctx context.Context, studentID, id string) error {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "download record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load download record")
	}
	if record.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "record belongs to another student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete download record")
	}
	return nil
}
