package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const visionPrompt = `Transcribe all text visible in these invoice pages.
Return the raw text only, reading order top to bottom, no commentary.`

// visionMaxPages caps how many pages go to the vision model per invoice.
const visionMaxPages = 2

// VisionExtractor renders PDF pages to images and asks a vision-capable
// chat model to transcribe them. Used for scanned invoices without a text
// layer.
type VisionExtractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewVisionExtractor creates a vision-based extractor.
func NewVisionExtractor(apiKey, model string, logger *zap.Logger) *VisionExtractor {
	return &VisionExtractor{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// ExtractText transcribes up to visionMaxPages pages.
func (e *VisionExtractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	images, err := renderPages(pdf, visionMaxPages)
	if err != nil {
		return "", fmt.Errorf("failed to render PDF pages: %w", err)
	}

	e.logger.Info("Transcribing invoice with vision model", zap.Int("pages", len(images)))

	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: visionPrompt,
		},
	}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(img)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision API call failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty transcription from vision model")
	}

	return resp.Choices[0].Message.Content, nil
}

// Fallback tries extractors in order, returning the first successful
// result. Mirrors the matcher chain: a local text-layer read first, the
// vision model only when needed.
type Fallback struct {
	extractors []Extractor
	logger     *zap.Logger
}

// NewFallback creates a fallback extractor over the given ordered chain.
func NewFallback(logger *zap.Logger, extractors ...Extractor) *Fallback {
	return &Fallback{extractors: extractors, logger: logger}
}

// ExtractText runs the chain. The last extractor's error is returned when
// all of them fail.
func (f *Fallback) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	var lastErr error
	for _, e := range f.extractors {
		text, err := e.ExtractText(ctx, pdf)
		if err == nil {
			return text, nil
		}
		lastErr = err
		f.logger.Debug("Extractor failed, trying next", zap.Error(err))
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no extractors configured")
	}
	return "", lastErr
}
