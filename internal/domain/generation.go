package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// StatusCompleted is the only persisted generation status. Failed attempts
// leave no record.
const StatusCompleted = "completed"

// Prompt length bounds, in characters rather than bytes. MinPromptLength
// applies to the trimmed prompt; MaxPromptLength to the raw one.
const (
	MinPromptLength = 5
	MaxPromptLength = 500
)

// MaxImageSize is the largest accepted reference image (10 MiB).
const MaxImageSize = 10 << 20

// Styles is the fixed set of supported design styles.
var Styles = []string{"Editorial", "Streetwear", "Runway", "Minimalist"}

// IsValidStyle reports whether the style belongs to the supported set.
func IsValidStyle(style string) bool {
	for _, s := range Styles {
		if s == style {
			return true
		}
	}
	return false
}

// allowedImageTypes lists the accepted reference image content types.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// IsAllowedImageType reports whether the content type is an accepted
// reference image format.
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

// ImageExtension returns the canonical file extension for an accepted image
// content type, or the empty string for anything else.
func ImageExtension(contentType string) string {
	return allowedImageTypes[contentType]
}

// ValidPrompt reports whether the prompt satisfies the length rules.
func ValidPrompt(prompt string) bool {
	return utf8.RuneCountInString(prompt) <= MaxPromptLength &&
		utf8.RuneCountInString(strings.TrimSpace(prompt)) >= MinPromptLength
}

// Generation is the persisted, immutable record of one successful
// generation attempt.
type Generation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	ImageURL  string    `json:"imageUrl"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
