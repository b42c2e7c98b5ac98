package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateSubjectID validates a subject identifier for safety and correctness.
// Subject ids become file names and key fragments in stores, so names that
// could be used for path traversal or key injection are rejected:
//   - No empty ids
//   - No control characters or null bytes
//   - No path separators or traversal sequences
//   - Only letters, digits, '.', '_' and '-'
//   - Maximum length of 128 characters
func ValidateSubjectID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "subject id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "subject id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "subject id contains invalid control characters")
		}
	}

	for _, pattern := range []string{"..", "/", "\\", "\x00"} {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidInput, "subject id contains invalid characters: %q", pattern)
		}
	}

	if !subjectIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid subject id: %q", id)
	}

	return nil
}

var subjectIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateEntityID validates an Article or Question id.
// Ids are opaque (normally UUIDs) but must be non-empty, printable and short
// enough to be used as renderer keys.
func ValidateEntityID(id string) error {
	if strings.TrimSpace(id) == "" {
		return New(ErrCodeValidation, "id cannot be empty")
	}
	if len(id) > 128 {
		return New(ErrCodeValidation, "id too long (max 128 characters)")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeValidation, "id contains invalid control characters")
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
