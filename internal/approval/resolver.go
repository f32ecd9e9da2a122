// Package approval resolves human-approval requests by token and applies
// the decision back onto the invoice.
package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"github.com/anyai-fi/invoicerobot/internal/netvisor"
	"go.uber.org/zap"
)

// Outcome classifies the result of a resolution attempt. Replays and
// unknown tokens are ordinary outcomes, not errors.
type Outcome string

const (
	OutcomeApproved         Outcome = "approved"
	OutcomeRejected         Outcome = "rejected"
	OutcomeNotFound         Outcome = "not-found"
	OutcomeAlreadyProcessed Outcome = "already-processed"
	OutcomeAccountingFailed Outcome = "accounting-update-failed"
)

// Decision is a human resolution of a pending approval request. ProjectKey
// may differ from the suggestion; the approver can pick any active project.
type Decision struct {
	Token           string
	Approve         bool
	ProjectKey      int64
	RejectionReason string
}

// ApprovalRepository is the persistence surface for requests. Approve and
// Reject are conditional on PENDING status and report whether the row was
// actually transitioned.
type ApprovalRepository interface {
	GetByToken(token string) (*models.ApprovalRequest, error)
	Approve(tx *sql.Tx, id, projectKey int64, respondedAt time.Time) (bool, error)
	Reject(tx *sql.Tx, id int64, reason string, respondedAt time.Time) (bool, error)
}

// InvoiceRepository loads and updates the owning invoice.
type InvoiceRepository interface {
	GetByID(id int64) (*models.Invoice, error)
	Update(tx *sql.Tx, invoice *models.Invoice) error
}

// TxRunner is the atomic commit boundary covering request and invoice.
type TxRunner interface {
	WithTransaction(fn func(*sql.Tx) error) error
}

// errLostRace signals that another resolution won the conditional update.
var errLostRace = errors.New("approval request no longer pending")

// Resolver applies approval decisions. Concurrent resolutions of the same
// token are safe: exactly one observes PENDING, the rest get
// OutcomeAlreadyProcessed.
type Resolver struct {
	approvalRepo ApprovalRepository
	invoiceRepo  InvoiceRepository
	tx           TxRunner
	accounting   netvisor.Service
	logger       *zap.Logger
}

// NewResolver creates an approval resolver.
func NewResolver(
	approvalRepo ApprovalRepository,
	invoiceRepo InvoiceRepository,
	tx TxRunner,
	accounting netvisor.Service,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		approvalRepo: approvalRepo,
		invoiceRepo:  invoiceRepo,
		tx:           tx,
		accounting:   accounting,
		logger:       logger,
	}
}

// Lookup fetches a request by token for display. Returns nil when the
// token is unknown.
func (r *Resolver) Lookup(token string) (*models.ApprovalRequest, error) {
	return r.approvalRepo.GetByToken(token)
}

// Resolve applies the decision. The returned error is non-nil only for
// unexpected persistence failures; every business result maps to an
// Outcome.
func (r *Resolver) Resolve(ctx context.Context, decision Decision) (Outcome, error) {
	request, err := r.approvalRepo.GetByToken(decision.Token)
	if err != nil {
		return "", err
	}
	if request == nil {
		r.logger.Warn("Approval token not found")
		return OutcomeNotFound, nil
	}
	if !request.IsPending() {
		r.logger.Info("Approval request already processed",
			zap.Int64("request_id", request.ID),
			zap.String("status", request.Status))
		return OutcomeAlreadyProcessed, nil
	}

	invoice, err := r.invoiceRepo.GetByID(request.InvoiceID)
	if err != nil {
		return "", err
	}
	if invoice == nil {
		return "", fmt.Errorf("invoice %d missing for approval request %d", request.InvoiceID, request.ID)
	}

	if decision.Approve {
		return r.approve(ctx, request, invoice, decision.ProjectKey)
	}
	return r.reject(request, invoice, decision.RejectionReason)
}

// approve pushes the chosen project to the accounting system first; only
// a successful push mutates local state, and the mutation of request and
// invoice is one transaction.
func (r *Resolver) approve(ctx context.Context, request *models.ApprovalRequest, invoice *models.Invoice, projectKey int64) (Outcome, error) {
	ok, err := r.accounting.UpdateInvoiceProject(ctx, invoice.NetvisorInvoiceKey, projectKey)
	if err != nil {
		r.logger.Error("Accounting update failed during approval", zap.Error(err))
		return OutcomeAccountingFailed, nil
	}
	if !ok {
		r.logger.Error("Accounting system declined project update during approval")
		return OutcomeAccountingFailed, nil
	}

	now := time.Now().UTC()
	err = r.tx.WithTransaction(func(tx *sql.Tx) error {
		applied, err := r.approvalRepo.Approve(tx, request.ID, projectKey, now)
		if err != nil {
			return err
		}
		if !applied {
			return errLostRace
		}

		invoice.Status = models.InvoiceStatusApproved
		invoice.FinalProjectKey = &projectKey
		invoice.UpdatedToAccountingAt = &now
		return r.invoiceRepo.Update(tx, invoice)
	})
	if errors.Is(err, errLostRace) {
		return OutcomeAlreadyProcessed, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to commit approval: %w", err)
	}

	r.logger.Info("Invoice approved",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int64("project_key", projectKey))
	return OutcomeApproved, nil
}

// reject never touches the accounting system.
func (r *Resolver) reject(request *models.ApprovalRequest, invoice *models.Invoice, reason string) (Outcome, error) {
	now := time.Now().UTC()
	err := r.tx.WithTransaction(func(tx *sql.Tx) error {
		applied, err := r.approvalRepo.Reject(tx, request.ID, reason, now)
		if err != nil {
			return err
		}
		if !applied {
			return errLostRace
		}

		invoice.Status = models.InvoiceStatusRejected
		return r.invoiceRepo.Update(tx, invoice)
	})
	if errors.Is(err, errLostRace) {
		return OutcomeAlreadyProcessed, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to commit rejection: %w", err)
	}

	r.logger.Info("Invoice rejected",
		zap.String("invoice_number", invoice.InvoiceNumber))
	return OutcomeRejected, nil
}
