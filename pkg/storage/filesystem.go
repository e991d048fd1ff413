package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage persists files on disk under a base directory. It is the
// fallback when no Supabase project is configured.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Upload copies the stream into the target file path.
func (s *LocalStorage) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (*StoredObject, error) {
	path := s.resolve(objectPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return nil, fmt.Errorf("write upload stream: %w", err)
	}
	return &StoredObject{ObjectPath: objectPath}, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(ctx context.Context, objectPath string) error {
	if objectPath == "" {
		return nil
	}
	if err := os.Remove(s.resolve(objectPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

// DownloadTarget points at the absolute on-disk path for streaming.
func (s *LocalStorage) DownloadTarget(objectPath, downloadName string) Target {
	return Target{LocalPath: s.resolve(objectPath), DownloadName: downloadName}
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *LocalStorage) Path(objectPath string) string {
	return s.resolve(objectPath)
}

func (s *LocalStorage) resolve(objectPath string) string {
	if filepath.IsAbs(objectPath) {
		return objectPath
	}
	return filepath.Join(s.baseDir, objectPath)
}
