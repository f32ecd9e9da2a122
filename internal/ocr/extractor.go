// Package ocr extracts text from invoice PDFs. The analyzer only sees the
// Extractor interface; remote OCR services plug in behind it.
package ocr

import (
	"context"
	"errors"
)

// ErrNoTextLayer is returned when a PDF carries no extractable text layer,
// typically a scanned document.
var ErrNoTextLayer = errors.New("pdf has no text layer")

// Extractor extracts plain text from a PDF document. It fails with an
// error on unreadable input and never returns an empty string with a nil
// error.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}
