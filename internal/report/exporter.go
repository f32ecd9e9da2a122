// Package report exports invoice matching results as Excel workbooks for
// the finance team.
package report

import (
	"fmt"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const sheetName = "Invoices"

var headers = []string{
	"Invoice Number", "Vendor", "Amount", "Invoice Date", "Status",
	"Suggested Project", "Confidence", "Reasoning", "Final Project",
	"Pushed To Accounting",
}

// Exporter writes invoice listings into xlsx workbooks.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates an invoice report exporter.
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Export renders the invoices into a workbook and returns the xlsx bytes.
func (e *Exporter) Export(invoices []*models.Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
	}

	for i, invoice := range invoices {
		row := i + 2
		values := []any{
			invoice.InvoiceNumber,
			invoice.VendorName,
			invoice.Amount.StringFixed(2),
			invoice.InvoiceDate.Format("2006-01-02"),
			invoice.Status,
			optionalKey(invoice.SuggestedProjectKey),
			optionalFloat(invoice.AiConfidenceScore),
			optionalString(invoice.AiReasoning),
			optionalKey(invoice.FinalProjectKey),
			optionalTime(invoice.UpdatedToAccountingAt),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	e.logger.Info("Invoice report exported",
		zap.Int("invoice_count", len(invoices)),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func optionalKey(key *int64) any {
	if key == nil {
		return ""
	}
	return *key
}

func optionalFloat(f *float64) any {
	if f == nil {
		return ""
	}
	return *f
}

func optionalString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
