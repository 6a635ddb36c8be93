// Package textextract pulls plain text out of PDF documents.
package textextract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrEncrypted is returned for PDFs that need a password to open.
	ErrEncrypted = errors.New("pdf is password protected")
	// ErrMalformed is returned when the PDF structure cannot be parsed.
	ErrMalformed = errors.New("pdf is malformed")
)

type ExtractedText struct {
	Content string
	Pages   int
	// SkippedPages counts pages whose text could not be decoded.
	SkippedPages int
}

// PDF extracts the text of every page, in page order, one page per block.
func PDF(data io.ReaderAt, size int64) (text *ExtractedText, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			text, err = nil, fmt.Errorf("%w: %v", ErrMalformed, p)
		}
	}()

	if size < 16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, size)
	}

	reader, err := pdf.NewReader(data, size)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, ErrEncrypted
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	out := &ExtractedText{Pages: numPages}

	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			out.SkippedPages++
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			out.SkippedPages++
			continue
		}
		buf.WriteString(pageText)
		buf.WriteString("\n")
	}

	out.Content = strings.TrimSpace(buf.String())
	return out, nil
}
