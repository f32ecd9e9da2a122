// Package netvisor defines the accounting-system collaborator contract.
// The production client lives outside this repository; local runs use the
// mock service below.
package netvisor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a purchase invoice as reported by the accounting system.
type Invoice struct {
	InvoiceKey    int64
	InvoiceNumber string
	VendorName    string
	Amount        decimal.Decimal
	InvoiceDate   time.Time
	DueDate       time.Time
	ProjectKey    *int64
}

// Project is a project dimension as reported by the accounting system.
type Project struct {
	ProjectKey          int64
	Code                string
	Name                string
	Address             string
	ProjectManagerEmail string
	IsActive            bool
}

// Service is the narrow contract the core consumes. UpdateInvoiceProject
// returns false for a soft failure (the accounting system declined without
// an error); callers must treat both false and an error as "not updated".
// DownloadInvoicePDF returns nil bytes with nil error when the invoice has
// no document attached.
type Service interface {
	GetPurchaseInvoices(ctx context.Context, since time.Time) ([]Invoice, error)
	GetActiveProjects(ctx context.Context) ([]Project, error)
	UpdateInvoiceProject(ctx context.Context, invoiceKey, projectKey int64) (bool, error)
	DownloadInvoicePDF(ctx context.Context, invoiceKey int64) ([]byte, error)
}

// MockService is a stand-in used until the real orchestrator client is
// available. It reports no invoices, no projects and accepts every update.
type MockService struct{}

// NewMockService creates a mock accounting service.
func NewMockService() *MockService {
	return &MockService{}
}

func (s *MockService) GetPurchaseInvoices(_ context.Context, _ time.Time) ([]Invoice, error) {
	return nil, nil
}

func (s *MockService) GetActiveProjects(_ context.Context) ([]Project, error) {
	return nil, nil
}

func (s *MockService) UpdateInvoiceProject(_ context.Context, _, _ int64) (bool, error) {
	return true, nil
}

func (s *MockService) DownloadInvoicePDF(_ context.Context, _ int64) ([]byte, error) {
	return nil, nil
}
