package document

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidateUpload(t *testing.T) {
	pdf := []byte("%PDF-1.4\n...")
	cases := []struct {
		name     string
		filename string
		data     []byte
		max      int64
		ok       bool
	}{
		{"valid", "call.pdf", pdf, 1 << 20, true},
		{"upper case extension", "CALL.PDF", pdf, 1 << 20, true},
		{"no filename", "", pdf, 1 << 20, false},
		{"wrong extension", "call.docx", pdf, 1 << 20, false},
		{"empty", "call.pdf", nil, 1 << 20, false},
		{"too large", "call.pdf", pdf, 4, false},
		{"not a pdf", "call.pdf", []byte("hello world"), 1 << 20, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUpload(tc.filename, tc.data, tc.max)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !IsKind(err, KindInvalidUpload) {
				t.Fatalf("err = %v, want InvalidUpload", err)
			}
		})
	}
}

func TestValidateSpeakerName(t *testing.T) {
	valid := map[string]string{
		"  John Smith ":    "John Smith",
		"O'Brien":          "O'Brien",
		"Mary-Jane Watson": "Mary-Jane Watson",
		"J. Smith":         "J. Smith",
		"José Álvarez":     "José Álvarez",
	}
	for in, want := range valid {
		got, err := ValidateSpeakerName(in)
		if err != nil || got != want {
			t.Fatalf("ValidateSpeakerName(%q) = %q, %v", in, got, err)
		}
	}

	for _, in := range []string{"", "   ", "J", "John3", "CEO@Acme", "-.-", strings.Repeat("a", 101)} {
		if _, err := ValidateSpeakerName(in); !IsKind(err, KindInvalidSpeakerName) {
			t.Fatalf("ValidateSpeakerName(%q) err = %v, want InvalidSpeakerName", in, err)
		}
	}
}

func TestValidateKeyMessages(t *testing.T) {
	got, err := ValidateKeyMessages("  Revenue grew 12% year over year.  ")
	if err != nil || got != "Revenue grew 12% year over year." {
		t.Fatalf("got %q, %v", got, err)
	}

	if _, err := ValidateKeyMessages(" \n\t"); !IsKind(err, KindEmptyKeyMessages) {
		t.Fatalf("blank input err = %v, want EmptyKeyMessages", err)
	}
	for _, in := range []string{"too short", "1234567890 !!", strings.Repeat("word ", 2001)} {
		if _, err := ValidateKeyMessages(in); !IsKind(err, KindInvalidKeyMessages) {
			t.Fatalf("ValidateKeyMessages(%q) err = %v, want InvalidKeyMessages", in, err)
		}
	}
}

func TestExtractorMapsFailures(t *testing.T) {
	e := NewTextExtractor()

	_, err := e.Extract(context.Background(), []byte("%PDF-1.4\nbroken"))
	if !IsKind(err, KindUnreadablePDF) {
		t.Fatalf("err = %v, want UnreadablePDF", err)
	}
	var de *Error
	if !errors.As(err, &de) || de.ErrorKind() != "UnreadablePDF" || de.Cause == nil {
		t.Fatalf("unexpected error detail: %+v", de)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Extract(ctx, []byte("%PDF-1.4")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
