package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultHistorySize is the cap on locally retained generation records.
const DefaultHistorySize = 5

// History is a bounded, newest-first view of completed generations. It holds
// at most its cap; inserting past the cap evicts the oldest record.
type History struct {
	mu      sync.Mutex
	cap     int
	records []Generation
}

// NewHistory creates a history bounded to size records.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		cap:     size,
		records: make([]Generation, 0, size),
	}
}

// Put inserts a record at the front. If a record with the same ID is already
// present it is removed first, so re-inserting moves it to the front instead
// of duplicating it. The oldest record is evicted when the cap is exceeded.
func (h *History) Put(gen Generation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.records {
		if existing.ID == gen.ID {
			h.records = append(h.records[:i], h.records[i+1:]...)
			break
		}
	}

	h.records = append([]Generation{gen}, h.records...)
	if len(h.records) > h.cap {
		h.records = h.records[:h.cap]
	}
}

// Merge reconciles a server listing into the history. The listing is applied
// oldest-first so the server's newest record ends up at the front; records
// already present keep a single entry. Merging the same listing twice is a
// no-op.
func (h *History) Merge(generations []Generation) {
	for i := len(generations) - 1; i >= 0; i-- {
		h.Put(generations[i])
	}
}

// Records returns a copy of the retained records, newest first.
func (h *History) Records() []Generation {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Generation, len(h.records))
	copy(out, h.records)
	return out
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// AssetFetcher downloads a generated image by its stored URL. *Client
// satisfies it.
type AssetFetcher interface {
	FetchAsset(ctx context.Context, imageURL string) (io.ReadCloser, error)
}

// Restore builds a fresh generation request from a past record: same prompt
// and style, with the record's generated image downloaded to serve as the new
// reference. The original record is left untouched; submitting the returned
// request produces a new generation.
func Restore(fetcher AssetFetcher, record Generation) GenerationRequest {
	return GenerationRequest{
		Prompt:           record.Prompt,
		Style:            record.Style,
		ImageFileName:    "restored" + extensionForURL(record.ImageURL),
		ImageContentType: contentTypeForURL(record.ImageURL),
		Image: func() (io.Reader, error) {
			body, err := fetcher.FetchAsset(context.Background(), record.ImageURL)
			if err != nil {
				return nil, fmt.Errorf("fetch asset for restore: %w", err)
			}
			return body, nil
		},
	}
}

func extensionForURL(url string) string {
	if strings.HasSuffix(url, ".png") {
		return ".png"
	}
	return ".jpg"
}

func contentTypeForURL(url string) string {
	if strings.HasSuffix(url, ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
