package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	supabase "github.com/supabase-community/storage-go"
)

// SupabaseStorage persists files in a Supabase Storage bucket.
type SupabaseStorage struct {
	client  *supabase.Client
	baseURL string
	bucket  string
}

// NewSupabaseStorage constructs a Supabase-backed provider.
func NewSupabaseStorage(projectURL, serviceKey, bucket string) (*SupabaseStorage, error) {
	if projectURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and key are required")
	}
	if bucket == "" {
		bucket = "uploads"
	}
	baseURL := strings.TrimRight(projectURL, "/")
	client := supabase.NewClient(baseURL+"/storage/v1", serviceKey, nil)
	return &SupabaseStorage{client: client, baseURL: baseURL, bucket: bucket}, nil
}

// Upload stores the stream under objectPath and returns its public URL.
func (s *SupabaseStorage) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (*StoredObject, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("buffer upload: %w", err)
	}

	options := supabase.FileOptions{}
	if contentType != "" {
		options.ContentType = &contentType
	}

	if _, err := s.client.UploadFile(s.bucket, objectPath, &buf, options); err != nil {
		return nil, fmt.Errorf("supabase upload %s: %w", objectPath, err)
	}

	return &StoredObject{
		ObjectPath: objectPath,
		PublicURL:  fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath),
	}, nil
}

// Delete removes the object from the bucket.
func (s *SupabaseStorage) Delete(ctx context.Context, objectPath string) error {
	if objectPath == "" {
		return nil
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{objectPath}); err != nil {
		return fmt.Errorf("supabase delete %s: %w", objectPath, err)
	}
	return nil
}

// DownloadTarget returns the public URL with a download query parameter so
// browsers save the file under its original name instead of rendering it.
func (s *SupabaseStorage) DownloadTarget(objectPath, downloadName string) Target {
	redirect := fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
	if downloadName != "" {
		redirect += "?download=" + url.QueryEscape(downloadName)
	}
	return Target{RedirectURL: redirect, DownloadName: downloadName}
}
