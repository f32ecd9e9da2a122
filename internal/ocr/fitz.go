package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// FitzExtractor reads the embedded text layer of a PDF with MuPDF.
// It is free and local, so it runs before any paid extraction; scanned
// documents fail with ErrNoTextLayer and fall through to the next
// extractor.
type FitzExtractor struct {
	logger *zap.Logger
}

// NewFitzExtractor creates a text-layer extractor.
func NewFitzExtractor(logger *zap.Logger) *FitzExtractor {
	return &FitzExtractor{logger: logger}
}

// ExtractText concatenates the text of all pages.
func (e *FitzExtractor) ExtractText(_ context.Context, pdf []byte) (string, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		text, err := doc.Text(pageNum)
		if err != nil {
			e.logger.Warn("Failed to read page text", zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", ErrNoTextLayer
	}

	result := strings.Join(pages, "\n\n")
	e.logger.Debug("Extracted text layer", zap.Int("chars", len(result)))
	return result, nil
}

// renderPages converts PDF pages to JPEG images, used by the vision
// fallback. Page count is capped by the caller to control API costs.
func renderPages(pdf []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount > maxPages {
		pageCount = maxPages
	}

	var images [][]byte
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			continue
		}
		images = append(images, buf.Bytes())
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no pages could be rendered")
	}
	return images, nil
}
