package document

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minSpeakerNameChars = 2
	maxSpeakerNameChars = 100
	minKeyMessageChars  = 10
	maxKeyMessageChars  = 10000
)

var pdfMagic = []byte("%PDF-")

// ValidateUpload checks that the upload looks like a PDF within maxBytes.
func ValidateUpload(filename string, data []byte, maxBytes int64) error {
	if strings.TrimSpace(filename) == "" {
		return invalid(KindInvalidUpload, "no file provided")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return invalid(KindInvalidUpload, "file must be a PDF (.pdf extension)")
	}
	if len(data) == 0 {
		return invalid(KindInvalidUpload, "file is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return invalid(KindInvalidUpload, "file too large (%.1f MB); maximum is %.1f MB",
			float64(len(data))/(1<<20), float64(maxBytes)/(1<<20))
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return invalid(KindInvalidUpload, "file content is not a PDF")
	}
	return nil
}

// ValidateSpeakerName returns the trimmed name, or an error if it is unusable.
// Letters, spaces, hyphens, apostrophes and periods are allowed.
func ValidateSpeakerName(name string) (string, error) {
	cleaned := strings.TrimSpace(name)
	if cleaned == "" {
		return "", invalid(KindInvalidSpeakerName, "speaker name cannot be empty")
	}

	n := utf8.RuneCountInString(cleaned)
	if n < minSpeakerNameChars {
		return "", invalid(KindInvalidSpeakerName, "speaker name must be at least %d characters long", minSpeakerNameChars)
	}
	if n > maxSpeakerNameChars {
		return "", invalid(KindInvalidSpeakerName, "speaker name too long (maximum %d characters)", maxSpeakerNameChars)
	}

	hasLetter := false
	for _, r := range cleaned {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsSpace(r), r == '-', r == '\'', r == '.':
		default:
			return "", invalid(KindInvalidSpeakerName,
				"speaker name can only contain letters, spaces, hyphens, apostrophes, and periods")
		}
	}
	if !hasLetter {
		return "", invalid(KindInvalidSpeakerName, "speaker name must contain at least one letter")
	}
	return cleaned, nil
}

// ValidateKeyMessages returns the trimmed key messages. Blank input is
// reported as KindEmptyKeyMessages.
func ValidateKeyMessages(messages string) (string, error) {
	cleaned := strings.TrimSpace(messages)
	if cleaned == "" {
		return "", invalid(KindEmptyKeyMessages, "key messages cannot be empty")
	}

	n := utf8.RuneCountInString(cleaned)
	if n < minKeyMessageChars {
		return "", invalid(KindInvalidKeyMessages, "key messages must be at least %d characters long", minKeyMessageChars)
	}
	if n > maxKeyMessageChars {
		return "", invalid(KindInvalidKeyMessages, "key messages too long (maximum %d characters)", maxKeyMessageChars)
	}

	letters := 0
	for _, r := range cleaned {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 2 {
		return "", invalid(KindInvalidKeyMessages, "key messages must contain meaningful text")
	}
	return cleaned, nil
}
