package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExport_RendersInvoiceRows(t *testing.T) {
	key := int64(100)
	conf := 0.95
	reasoning := "[Heuristic] Project code 'PRJ-001' found in invoice text"
	pushed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	invoices := []*models.Invoice{
		{
			InvoiceNumber:         "INV-1",
			VendorName:            "Betoni Oy",
			Amount:                decimal.RequireFromString("1250.50"),
			InvoiceDate:           time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
			Status:                models.InvoiceStatusMatchedAuto,
			SuggestedProjectKey:   &key,
			AiConfidenceScore:     &conf,
			AiReasoning:           &reasoning,
			FinalProjectKey:       &key,
			UpdatedToAccountingAt: &pushed,
		},
		{
			InvoiceNumber: "INV-2",
			VendorName:    "Sähkö Oy",
			Amount:        decimal.RequireFromString("99.00"),
			Status:        models.InvoiceStatusAnalysisFailed,
		},
	}

	data, err := NewExporter(zap.NewNop()).Export(invoices)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Invoice Number", rows[0][0])
	assert.Equal(t, "INV-1", rows[1][0])
	assert.Equal(t, "1250.50", rows[1][2])
	assert.Equal(t, models.InvoiceStatusMatchedAuto, rows[1][4])
	assert.Equal(t, reasoning, rows[1][7])
	assert.Equal(t, "INV-2", rows[2][0])
	assert.Equal(t, models.InvoiceStatusAnalysisFailed, rows[2][4])
}

func TestExport_EmptyListStillHasHeader(t *testing.T) {
	data, err := NewExporter(zap.NewNop()).Export(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, headers, rows[0])
}
