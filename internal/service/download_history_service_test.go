package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstudy/platform-api/internal/models"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
)

type mockDownloadHistoryRepo struct {
	records map[string]*models.DownloadRecord
	deleted []string
}

func newMockDownloadHistoryRepo() *mockDownloadHistoryRepo {
	return &mockDownloadHistoryRepo{records: map[string]*models.DownloadRecord{}}
}

func (m *mockDownloadHistoryRepo) FindByID(_ context.Context, id string) (*models.DownloadRecord, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (m *mockDownloadHistoryRepo) ListByStudent(_ context.Context, filter models.DownloadFilter) ([]models.DownloadRecord, int, error) {
	var out []models.DownloadRecord
	for _, record := range m.records {
		if record.StudentID == filter.StudentID {
			out = append(out, *record)
		}
	}
	return out, len(out), nil
}

func (m *mockDownloadHistoryRepo) Delete(_ context.Context, id string) error {
	delete(m.records, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDownloadHistoryRepo) Stats(_ context.Context, _ string) (*models.DownloadStats, error) {
	return &models.DownloadStats{TotalDownloads: len(m.records)}, nil
}

func TestDownloadHistoryDeleteOwnRecord(t *testing.T) {
	repo := newMockDownloadHistoryRepo()
	repo.records["d1"] = &models.DownloadRecord{ID: "d1", StudentID: "s1"}
	svc := NewDownloadHistoryService(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), "s1", "d1"))
	assert.Equal(t, []string{"d1"}, repo.deleted)
}

func TestDownloadHistoryDeleteRejectsOtherStudent(t *testing.T) {
	repo := newMockDownloadHistoryRepo()
	repo.records["d1"] = &models.DownloadRecord{ID: "d1", StudentID: "s1"}
	svc := NewDownloadHistoryService(repo, nil)

	err := svc.Delete(context.Background(), "s2", "d1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestDownloadHistoryDeleteMissingRecord(t *testing.T) {
	svc := NewDownloadHistoryService(newMockDownloadHistoryRepo(), nil)

	err := svc.Delete(context.Background(), "s1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDownloadHistoryListScopesToStudent(t *testing.T) {
	repo := newMockDownloadHistoryRepo()
	repo.records["d1"] = &models.DownloadRecord{ID: "d1", StudentID: "s1"}
	repo.records["d2"] = &models.DownloadRecord{ID: "d2", StudentID: "s2"}
	svc := NewDownloadHistoryService(repo, nil)

	records, total, err := svc.List(context.Background(), models.DownloadFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "d1", records[0].ID)
}
