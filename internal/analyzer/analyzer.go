// Package analyzer drives the invoice analysis pipeline: OCR, the matcher
// chain and the confidence-gated decision between automatic assignment and
// human approval.
package analyzer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/matcher"
	"github.com/anyai-fi/invoicerobot/internal/models"
	"github.com/anyai-fi/invoicerobot/internal/netvisor"
	"github.com/anyai-fi/invoicerobot/internal/ocr"
	"github.com/anyai-fi/invoicerobot/pkg/utils"
	"go.uber.org/zap"
)

// InvoiceRepository is the invoice persistence surface the analyzer needs.
type InvoiceRepository interface {
	GetByStatus(status string) ([]*models.Invoice, error)
	Update(tx *sql.Tx, invoice *models.Invoice) error
}

// ProjectRepository loads the candidate project catalog.
type ProjectRepository interface {
	GetActive() ([]*models.Project, error)
}

// ApprovalRepository creates approval requests for low-confidence matches.
type ApprovalRepository interface {
	Create(tx *sql.Tx, req *models.ApprovalRequest) error
}

// TxRunner is the batch commit boundary.
type TxRunner interface {
	WithTransaction(fn func(*sql.Tx) error) error
}

// Matcher is the matcher chain: a result plus the method tag of the
// matcher that produced it, or nil when every matcher declined.
type Matcher interface {
	Match(ctx context.Context, invoice *models.Invoice, projects []*models.Project) (*matcher.Result, string)
}

// Notifier sends the approval request to the responsible human. Failures
// are logged, never fatal: the web form stays reachable via the token.
type Notifier interface {
	SendApprovalRequest(ctx context.Context, invoice *models.Invoice, req *models.ApprovalRequest, project *models.Project) error
}

// Config holds the pipeline policy knobs.
type Config struct {
	// ConfidenceThreshold is the auto-match cutoff, inclusive. Matches at
	// or above it skip human approval.
	ConfidenceThreshold float64
}

// Analyzer processes discovered invoices in batches. Each invoice is
// fault-isolated; the batch commits once at the end.
type Analyzer struct {
	cfg          Config
	invoiceRepo  InvoiceRepository
	projectRepo  ProjectRepository
	approvalRepo ApprovalRepository
	tx           TxRunner
	accounting   netvisor.Service
	extractor    ocr.Extractor
	matchers     Matcher
	notifier     Notifier
	logger       *zap.Logger
}

// New creates an analyzer.
func New(
	cfg Config,
	invoiceRepo InvoiceRepository,
	projectRepo ProjectRepository,
	approvalRepo ApprovalRepository,
	tx TxRunner,
	accounting netvisor.Service,
	extractor ocr.Extractor,
	matchers Matcher,
	notifier Notifier,
	logger *zap.Logger,
) *Analyzer {
	return &Analyzer{
		cfg:          cfg,
		invoiceRepo:  invoiceRepo,
		projectRepo:  projectRepo,
		approvalRepo: approvalRepo,
		tx:           tx,
		accounting:   accounting,
		extractor:    extractor,
		matchers:     matchers,
		notifier:     notifier,
		logger:       logger,
	}
}

// pendingApproval pairs a new request with the context its notification
// email needs.
type pendingApproval struct {
	invoice *models.Invoice
	request *models.ApprovalRequest
	project *models.Project
}

// Run executes one analysis pass over all discovered invoices. Per-invoice
// failures are logged and skipped; an error return means the batch itself
// could not run or commit.
func (a *Analyzer) Run(ctx context.Context) error {
	a.logger.Info("Invoice analysis starting")

	invoices, err := a.invoiceRepo.GetByStatus(models.InvoiceStatusDiscovered)
	if err != nil {
		return fmt.Errorf("failed to load discovered invoices: %w", err)
	}
	if len(invoices) == 0 {
		a.logger.Info("No invoices to analyze")
		return nil
	}

	projects, err := a.projectRepo.GetActive()
	if err != nil {
		return fmt.Errorf("failed to load active projects: %w", err)
	}

	a.logger.Info("Analyzing invoices",
		zap.Int("invoice_count", len(invoices)),
		zap.Int("project_count", len(projects)))

	var dirty []*models.Invoice
	var approvals []pendingApproval

	for _, invoice := range invoices {
		changed, approval, err := a.analyzeInvoice(ctx, invoice, projects)
		if err != nil {
			a.logger.Error("Failed to analyze invoice",
				zap.String("invoice_number", invoice.InvoiceNumber),
				zap.Error(err))
			continue
		}
		if changed {
			dirty = append(dirty, invoice)
		}
		if approval != nil {
			approvals = append(approvals, *approval)
		}
	}

	if len(dirty) == 0 {
		a.logger.Info("Invoice analysis finished, nothing to persist")
		return nil
	}

	// Single batch-level commit covering invoice updates and new requests
	err = a.tx.WithTransaction(func(tx *sql.Tx) error {
		for _, invoice := range dirty {
			if err := a.invoiceRepo.Update(tx, invoice); err != nil {
				return err
			}
		}
		for _, p := range approvals {
			if err := a.approvalRepo.Create(tx, p.request); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit analysis batch: %w", err)
	}

	// Notifications go out only after the tokens are durable
	for _, p := range approvals {
		if err := a.notifier.SendApprovalRequest(ctx, p.invoice, p.request, p.project); err != nil {
			a.logger.Error("Failed to send approval request",
				zap.String("invoice_number", p.invoice.InvoiceNumber),
				zap.Error(err))
		}
	}

	a.logger.Info("Invoice analysis finished",
		zap.Int("updated", len(dirty)),
		zap.Int("approval_requests", len(approvals)))
	return nil
}

// analyzeInvoice runs the pipeline for one invoice. It mutates the invoice
// in memory only; the caller persists. The bool reports whether anything
// changed, so soft skips leave no trace.
func (a *Analyzer) analyzeInvoice(ctx context.Context, invoice *models.Invoice, projects []*models.Project) (bool, *pendingApproval, error) {
	log := a.logger.With(zap.String("invoice_number", invoice.InvoiceNumber))

	// 1. Fetch the document; absence is a soft skip, next run retries
	pdf, err := a.accounting.DownloadInvoicePDF(ctx, invoice.NetvisorInvoiceKey)
	if err != nil {
		log.Error("Failed to download invoice PDF", zap.Error(err))
		return false, nil, nil
	}
	if len(pdf) == 0 {
		log.Warn("Invoice has no PDF document, skipping")
		return false, nil, nil
	}

	// 2. Extract text; failure is a soft skip as well
	text, err := a.extractor.ExtractText(ctx, pdf)
	if err != nil {
		log.Error("Text extraction failed", zap.Error(err))
		return false, nil, nil
	}

	now := time.Now().UTC()
	invoice.OcrText = text
	invoice.OcrProcessedAt = &now

	// 3-4. Matcher chain, each matcher fault-isolated internally
	result, method := a.matchers.Match(ctx, invoice, projects)
	if result == nil {
		log.Warn("No project found for invoice")
		invoice.Status = models.InvoiceStatusAnalysisFailed
		return true, nil, nil
	}

	// Record the suggestion regardless of the threshold outcome
	invoice.SetSuggestion(result.ProjectKey, result.Confidence,
		fmt.Sprintf("[%s] %s", method, result.Reasoning), now)

	log.Info("Match found",
		zap.String("method", method),
		zap.Int64("project_key", result.ProjectKey),
		zap.Float64("confidence", result.Confidence))

	if result.Confidence >= a.cfg.ConfidenceThreshold {
		return a.autoAssign(ctx, invoice, result, log), nil, nil
	}

	approval := a.requestApproval(invoice, result, projects, now)
	return true, approval, nil
}

// autoAssign pushes a high-confidence match to the accounting system.
// On failure the status stays untouched so the next run retries.
func (a *Analyzer) autoAssign(ctx context.Context, invoice *models.Invoice, result *matcher.Result, log *zap.Logger) bool {
	ok, err := a.accounting.UpdateInvoiceProject(ctx, invoice.NetvisorInvoiceKey, result.ProjectKey)
	if err != nil {
		log.Error("Accounting update failed", zap.Error(err))
		return true
	}
	if !ok {
		log.Error("Accounting system declined project update")
		return true
	}

	now := time.Now().UTC()
	invoice.Status = models.InvoiceStatusMatchedAuto
	invoice.FinalProjectKey = &result.ProjectKey
	invoice.UpdatedToAccountingAt = &now

	log.Info("Invoice auto-matched",
		zap.Int64("project_key", result.ProjectKey))
	return true
}

// requestApproval moves the invoice to pending approval and builds exactly
// one pending request copying the suggestion fields.
func (a *Analyzer) requestApproval(invoice *models.Invoice, result *matcher.Result, projects []*models.Project, now time.Time) *pendingApproval {
	invoice.Status = models.InvoiceStatusPendingApproval

	sentAt := now
	request := &models.ApprovalRequest{
		InvoiceID:           invoice.ID,
		Token:               utils.NewApprovalToken(),
		SuggestedProjectKey: &result.ProjectKey,
		ConfidenceScore:     &result.Confidence,
		Reasoning:           result.Reasoning,
		Status:              models.ApprovalStatusPending,
		SentAt:              &sentAt,
	}

	var project *models.Project
	for _, p := range projects {
		if p.NetvisorProjectKey == result.ProjectKey {
			project = p
			break
		}
	}

	a.logger.Info("Approval request created",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Float64("confidence", result.Confidence))

	return &pendingApproval{invoice: invoice, request: request, project: project}
}
