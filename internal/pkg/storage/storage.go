package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrExists      = errors.New("object already exists")
	ErrNotFound    = errors.New("object not found")
	ErrInvalidPath = errors.New("invalid object path")
)

// FileStorage stores write-once evidence objects by key.
type FileStorage interface {
	// Upload writes r under key. It fails with ErrExists instead of overwriting.
	Upload(ctx context.Context, r io.Reader, key string, contentType string) (string, error)

	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
