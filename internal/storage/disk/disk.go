package disk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lookbook-ai/lookbook/internal/storage"
)

// Storage implements storage.Storage on the local filesystem. Files are
// written under a single upload directory with random hex names, so keys
// never contain caller-controlled path segments.
type Storage struct {
	dir string
}

// New creates a disk storage rooted at dir, creating it if needed.
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Save writes the image to a new randomly named file and returns its key
// and relative URL.
func (s *Storage) Save(_ context.Context, input *storage.SaveInput) (*storage.SaveResult, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate file name: %w", err)
	}
	key := hex.EncodeToString(buf) + input.Extension

	path := filepath.Join(s.dir, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(f, input.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close upload file: %w", err)
	}

	return &storage.SaveResult{
		Key: key,
		URL: "/uploads/" + key,
	}, nil
}

// Open returns a reader over a stored image.
func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if key != filepath.Base(key) {
		return nil, fmt.Errorf("invalid storage key: %s", key)
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return f, nil
}

// Delete removes a stored image.
func (s *Storage) Delete(_ context.Context, key string) error {
	if key != filepath.Base(key) {
		return fmt.Errorf("invalid storage key: %s", key)
	}
	if err := os.Remove(filepath.Join(s.dir, key)); err != nil {
		return fmt.Errorf("remove upload file: %w", err)
	}
	return nil
}

// Dir returns the root directory files are stored under.
func (s *Storage) Dir() string {
	return s.dir
}
