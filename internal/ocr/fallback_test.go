package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubExtractor struct {
	text  string
	err   error
	calls int
}

func (s *stubExtractor) ExtractText(context.Context, []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestFallback_FirstSuccessWins(t *testing.T) {
	first := &stubExtractor{text: "text layer"}
	second := &stubExtractor{text: "vision"}

	text, err := NewFallback(zap.NewNop(), first, second).ExtractText(context.Background(), []byte("pdf"))

	require.NoError(t, err)
	assert.Equal(t, "text layer", text)
	assert.Zero(t, second.calls, "later extractors must not run after a success")
}

func TestFallback_FallsThroughOnNoTextLayer(t *testing.T) {
	first := &stubExtractor{err: ErrNoTextLayer}
	second := &stubExtractor{text: "vision transcription"}

	text, err := NewFallback(zap.NewNop(), first, second).ExtractText(context.Background(), []byte("pdf"))

	require.NoError(t, err)
	assert.Equal(t, "vision transcription", text)
}

func TestFallback_ReturnsLastError(t *testing.T) {
	visionErr := errors.New("vision API call failed")
	first := &stubExtractor{err: ErrNoTextLayer}
	second := &stubExtractor{err: visionErr}

	_, err := NewFallback(zap.NewNop(), first, second).ExtractText(context.Background(), []byte("pdf"))

	assert.ErrorIs(t, err, visionErr)
}

func TestFallback_NoExtractors(t *testing.T) {
	_, err := NewFallback(zap.NewNop()).ExtractText(context.Background(), []byte("pdf"))
	assert.Error(t, err)
}
