package matcher

import (
	"context"

	"github.com/anyai-fi/invoicerobot/internal/models"
)

// Result is a single project match candidate. Confidence is in [0,1];
// for the heuristic matcher it is a clamped additive evidence score,
// not a probability.
type Result struct {
	ProjectKey int64
	Confidence float64
	Reasoning  string
}

// ProjectMatcher maps an invoice's extracted text to zero or one project.
// A nil result with nil error means no candidate cleared the matcher's
// internal bar. Errors are reserved for transport and parsing failures.
type ProjectMatcher interface {
	Name() string
	Match(ctx context.Context, invoice *models.Invoice, projects []*models.Project) (*Result, error)
}
