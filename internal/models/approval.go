package models

import "time"

// Approval request statuses. Transitions only leave PENDING, never return.
const (
	ApprovalStatusPending  = "PENDING"
	ApprovalStatusApproved = "APPROVED"
	ApprovalStatusRejected = "REJECTED"
	ApprovalStatusExpired  = "EXPIRED"
)

// ApprovalRequest is a human-approval request created by the analyzer when
// match confidence is below the auto-match threshold. The token is the only
// external handle for resolving the request. Suggestion fields are copied
// from the invoice at creation time so later invoice mutation cannot change
// what the approver was shown.
type ApprovalRequest struct {
	ID        int64
	InvoiceID int64
	Token     string

	SuggestedProjectKey *int64
	ConfidenceScore     *float64
	Reasoning           string

	Status             string
	ApprovedProjectKey *int64
	RejectionReason    string

	SentAt      *time.Time
	RespondedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// IsPending reports whether the request can still be resolved.
func (r *ApprovalRequest) IsPending() bool {
	return r.Status == ApprovalStatusPending
}
