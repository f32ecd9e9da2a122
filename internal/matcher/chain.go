package matcher

import (
	"context"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"go.uber.org/zap"
)

// Chain tries matchers in order until one returns a candidate. Each matcher
// is fault-isolated: an error is logged and treated as no match from that
// matcher, so a failing AI backend never blocks the heuristic path and
// vice versa. New matchers are added by appending to the list.
type Chain struct {
	matchers []ProjectMatcher
	logger   *zap.Logger
}

// NewChain creates a matcher chain with the given ordered matchers.
func NewChain(logger *zap.Logger, matchers ...ProjectMatcher) *Chain {
	return &Chain{
		matchers: matchers,
		logger:   logger,
	}
}

// Match runs the chain. The second return value is the name of the matcher
// that produced the result, recorded on the invoice as the method tag.
// It returns (nil, "") when every matcher declines or fails.
func (c *Chain) Match(ctx context.Context, invoice *models.Invoice, projects []*models.Project) (*Result, string) {
	for _, m := range c.matchers {
		result, err := m.Match(ctx, invoice, projects)
		if err != nil {
			c.logger.Error("Matcher failed",
				zap.String("matcher", m.Name()),
				zap.String("invoice_number", invoice.InvoiceNumber),
				zap.Error(err))
			continue
		}
		if result != nil {
			return result, m.Name()
		}
	}
	return nil, ""
}
