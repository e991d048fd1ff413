package storage

import (
	"context"
	"io"
)

// StoredObject describes a persisted file.
type StoredObject struct {
	ObjectPath string
	PublicURL  string
}

// Target tells the HTTP layer how to serve a download: either redirect to
// a provider URL or stream a local path. Exactly one of those is set.
// DownloadName carries the filename the client should save as.
type Target struct {
	RedirectURL  string
	LocalPath    string
	DownloadName string
}

// Provider abstracts where note attachments live.
type Provider interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (*StoredObject, error)
	Delete(ctx context.Context, objectPath string) error
	DownloadTarget(objectPath, downloadName string) Target
}
