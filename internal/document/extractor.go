package document

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/nikhilbhutani/speechwriter/pkg/textextract"
)

// TextExtractor turns an uploaded transcript into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, pdfBytes []byte) (string, error)
}

// PDFExtractor reads text-based PDFs. Scanned PDFs yield no text and fail as unreadable.
type PDFExtractor struct{}

func NewTextExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, pdfBytes []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	result, err := textextract.PDF(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	switch {
	case errors.Is(err, textextract.ErrEncrypted):
		return "", &Error{Kind: KindPasswordProtected, Message: "the PDF is password protected", Cause: err}
	case err != nil:
		return "", &Error{Kind: KindUnreadablePDF, Message: "the PDF could not be read", Cause: err}
	}

	if result.Content == "" {
		return "", &Error{Kind: KindUnreadablePDF, Message: "the PDF contains no extractable text; scanned documents are not supported"}
	}

	slog.Info("extracted transcript text",
		"pages", result.Pages, "skipped_pages", result.SkippedPages, "chars", len(result.Content))
	return result.Content, nil
}
