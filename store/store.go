// Package store persists document metadata and blobs for the redaction
// service. Two small contracts keep the service testable: MetadataStore for
// records, BlobStore for bytes.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document id or blob key does not exist.
var ErrNotFound = errors.New("store: not found")

// Document is one stored file's metadata.
type Document struct {
	ID        string
	Owner     string
	Name      string
	Size      int64
	Masked    bool
	CreatedAt time.Time
}

type MetadataStore interface {
	Create(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (Document, error)
	ListByOwner(ctx context.Context, owner string) ([]Document, error)
	Delete(ctx context.Context, id string) error
}

type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
