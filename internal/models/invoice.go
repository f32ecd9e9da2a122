package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice statuses. The analyzer moves an invoice out of DISCOVERED;
// the approval workflow owns the PENDING_APPROVAL → APPROVED/REJECTED leg.
const (
	InvoiceStatusDiscovered      = "DISCOVERED"
	InvoiceStatusMatchedAuto     = "MATCHED_AUTO"
	InvoiceStatusPendingApproval = "PENDING_APPROVAL"
	InvoiceStatusApproved        = "APPROVED"
	InvoiceStatusRejected        = "REJECTED"
	InvoiceStatusAnalysisFailed  = "ANALYSIS_FAILED"
	InvoiceStatusError           = "ERROR"
)

// Invoice is a purchase invoice pulled from the accounting system.
// NetvisorInvoiceKey is the accounting-side identity and is unique.
type Invoice struct {
	ID                 int64
	NetvisorInvoiceKey int64
	InvoiceNumber      string
	VendorName         string
	Amount             decimal.Decimal
	InvoiceDate        time.Time
	DueDate            time.Time

	// OCR result, set once text extraction succeeds
	OcrText        string
	OcrProcessedAt *time.Time

	// Matcher suggestion. SuggestedProjectKey, AiConfidenceScore and
	// AiReasoning are always set together with AiAnalyzedAt.
	SuggestedProjectKey *int64
	AiConfidenceScore   *float64
	AiReasoning         *string
	AiAnalyzedAt        *time.Time

	// Final assignment after auto-match or human approval
	FinalProjectKey       *int64
	UpdatedToAccountingAt *time.Time

	Status    string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// SetSuggestion records a matcher result on the invoice.
func (i *Invoice) SetSuggestion(projectKey int64, confidence float64, reasoning string, at time.Time) {
	i.SuggestedProjectKey = &projectKey
	i.AiConfidenceScore = &confidence
	i.AiReasoning = &reasoning
	i.AiAnalyzedAt = &at
}

// IsTerminal reports whether the invoice has left the analysis/approval flow.
func (i *Invoice) IsTerminal() bool {
	switch i.Status {
	case InvoiceStatusMatchedAuto, InvoiceStatusApproved, InvoiceStatusRejected,
		InvoiceStatusAnalysisFailed, InvoiceStatusError:
		return true
	}
	return false
}
