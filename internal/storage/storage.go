package storage

import (
	"context"
	"io"
)

// Storage defines the interface for reference image storage.
type Storage interface {
	// Save stores a reference image and returns the result with key and URL.
	Save(ctx context.Context, input *SaveInput) (*SaveResult, error)

	// Open returns a reader over a previously stored image.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a stored image by its key.
	Delete(ctx context.Context, key string) error
}

// SaveInput holds the parameters for storing a reference image.
type SaveInput struct {
	Extension   string
	ContentType string
	Size        int64
	Data        io.Reader
}

// SaveResult holds the result of a successful save. URL is a relative
// reference ("/uploads/<key>") that clients resolve against the service base.
type SaveResult struct {
	Key string
	URL string
}
