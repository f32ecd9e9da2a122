package matcher

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"go.uber.org/zap"
)

// Signal weights. The aggregate is clamped to 1.0 only after summing, so
// several medium signals can reach the auto-match range on their own.
const (
	codeMatchScore    = 1.0
	addressMatchScore = 0.7
	nameWordScore     = 0.5

	addressSegmentMinLen = 5
	nameWordMinLen       = 4
)

// HeuristicMatcher scores projects against the invoice text with three
// additive signals: exact project code, address and project name words.
// It is deterministic and makes no external calls.
type HeuristicMatcher struct {
	logger *zap.Logger
}

// NewHeuristicMatcher creates a new heuristic matcher.
func NewHeuristicMatcher(logger *zap.Logger) *HeuristicMatcher {
	return &HeuristicMatcher{logger: logger}
}

// Name returns the method tag recorded on matched invoices.
func (m *HeuristicMatcher) Name() string {
	return "Heuristic"
}

// Match scores every active project and returns the best one, or nil when
// nothing scores above zero.
func (m *HeuristicMatcher) Match(_ context.Context, invoice *models.Invoice, projects []*models.Project) (*Result, error) {
	if invoice.OcrText == "" {
		m.logger.Warn("Invoice has no extracted text",
			zap.String("invoice_number", invoice.InvoiceNumber))
		return nil, nil
	}

	text := strings.ToLower(invoice.OcrText)

	var best *Result
	var bestRaw float64

	for _, project := range projects {
		if !project.IsActive {
			continue
		}

		score, reasons := m.scoreProject(text, project)
		if score <= 0 {
			continue
		}
		if best != nil && score <= bestRaw {
			continue
		}

		bestRaw = score
		best = &Result{
			ProjectKey: project.NetvisorProjectKey,
			Confidence: min(score, 1.0),
			Reasoning:  strings.Join(reasons, "; "),
		}
	}

	if best == nil {
		m.logger.Info("No heuristic match",
			zap.String("invoice_number", invoice.InvoiceNumber))
		return nil, nil
	}

	m.logger.Info("Heuristic match",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int64("project_key", best.ProjectKey),
		zap.Float64("confidence", best.Confidence))

	return best, nil
}

// scoreProject accumulates the three signals for one project.
func (m *HeuristicMatcher) scoreProject(text string, project *models.Project) (float64, []string) {
	var score float64
	var reasons []string

	// 1. Exact project code, highest priority
	if containsWord(text, strings.ToLower(project.Code)) {
		score += codeMatchScore
		reasons = append(reasons, fmt.Sprintf("project code '%s' found in text", project.Code))
	}

	// 2. Address: first qualifying segment wins, no double counting
	if project.Address != "" {
		segments := strings.FieldsFunc(project.Address, func(r rune) bool {
			return r == ',' || r == ';'
		})

	addressLoop:
		for _, segment := range segments {
			segment = strings.TrimSpace(segment)

			if len(segment) > addressSegmentMinLen && strings.Contains(text, strings.ToLower(segment)) {
				score += addressMatchScore
				reasons = append(reasons, fmt.Sprintf("address '%s' found in text", segment))
				break
			}

			for _, word := range strings.Fields(segment) {
				if len(word) > addressSegmentMinLen && containsWord(text, strings.ToLower(word)) {
					score += addressMatchScore
					reasons = append(reasons, fmt.Sprintf("address '%s' found in text", segment))
					break addressLoop
				}
			}
		}
	}

	// 3. Significant project name words, additive per word
	for _, part := range strings.Fields(project.Name) {
		if len(part) > nameWordMinLen && containsWord(text, strings.ToLower(part)) {
			score += nameWordScore
			reasons = append(reasons, fmt.Sprintf("project name part '%s' found in text", part))
		}
	}

	return score, reasons
}

// containsWord reports whether word occurs in text as a whole word.
// Word-boundary matching keeps "PRJ-001" from matching inside "PRJ-0011".
func containsWord(text, word string) bool {
	pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}
	return pattern.MatchString(text)
}
