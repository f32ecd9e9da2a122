// Package fetcher syncs the project catalog and discovers new purchase
// invoices from the accounting system.
package fetcher

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"github.com/anyai-fi/invoicerobot/internal/netvisor"
	"go.uber.org/zap"
)

// InvoiceRepository is the invoice persistence surface the fetcher needs.
type InvoiceRepository interface {
	GetByNetvisorKey(key int64) (*models.Invoice, error)
	Create(tx *sql.Tx, invoice *models.Invoice) error
}

// ProjectRepository upserts catalog entries keyed by their accounting id.
type ProjectRepository interface {
	Upsert(tx *sql.Tx, project *models.Project) error
}

// Config holds the discovery policy.
type Config struct {
	// Lookback bounds how far back the invoice listing reaches. Already
	// known invoices inside the window are skipped, so a generous window
	// only costs one listing call.
	Lookback time.Duration
}

// Fetcher pulls projects and invoices from the accounting system into the
// local database. Discovery is idempotent: reruns never duplicate.
type Fetcher struct {
	cfg         Config
	accounting  netvisor.Service
	invoiceRepo InvoiceRepository
	projectRepo ProjectRepository
	logger      *zap.Logger
}

// New creates a fetcher.
func New(cfg Config, accounting netvisor.Service, invoiceRepo InvoiceRepository, projectRepo ProjectRepository, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		cfg:         cfg,
		accounting:  accounting,
		invoiceRepo: invoiceRepo,
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// Run executes one fetch pass: projects first so the matcher catalog is
// fresh before any new invoice gets analyzed.
func (f *Fetcher) Run(ctx context.Context) error {
	if err := f.syncProjects(ctx); err != nil {
		return err
	}
	return f.discoverInvoices(ctx)
}

func (f *Fetcher) syncProjects(ctx context.Context) error {
	projects, err := f.accounting.GetActiveProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active projects: %w", err)
	}

	for _, p := range projects {
		project := &models.Project{
			NetvisorProjectKey:  p.ProjectKey,
			Code:                p.Code,
			Name:                p.Name,
			Address:             p.Address,
			ProjectManagerEmail: p.ProjectManagerEmail,
			IsActive:            p.IsActive,
		}
		if err := f.projectRepo.Upsert(nil, project); err != nil {
			return fmt.Errorf("failed to upsert project %s: %w", p.Code, err)
		}
	}

	f.logger.Info("Project catalog synced", zap.Int("project_count", len(projects)))
	return nil
}

func (f *Fetcher) discoverInvoices(ctx context.Context) error {
	since := time.Now().UTC().Add(-f.cfg.Lookback)
	invoices, err := f.accounting.GetPurchaseInvoices(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to list purchase invoices: %w", err)
	}

	discovered := 0
	for _, inv := range invoices {
		existing, err := f.invoiceRepo.GetByNetvisorKey(inv.InvoiceKey)
		if err != nil {
			return fmt.Errorf("failed to look up invoice %d: %w", inv.InvoiceKey, err)
		}
		if existing != nil {
			continue
		}

		invoice := &models.Invoice{
			NetvisorInvoiceKey: inv.InvoiceKey,
			InvoiceNumber:      inv.InvoiceNumber,
			VendorName:         inv.VendorName,
			Amount:             inv.Amount,
			InvoiceDate:        inv.InvoiceDate,
			DueDate:            inv.DueDate,
			Status:             models.InvoiceStatusDiscovered,
		}
		if err := f.invoiceRepo.Create(nil, invoice); err != nil {
			return fmt.Errorf("failed to create invoice %s: %w", inv.InvoiceNumber, err)
		}

		discovered++
		f.logger.Info("Discovered new invoice",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.String("vendor", inv.VendorName))
	}

	f.logger.Info("Invoice discovery finished",
		zap.Int("listed", len(invoices)),
		zap.Int("new", discovered))
	return nil
}
