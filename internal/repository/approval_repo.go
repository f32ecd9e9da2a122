package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"go.uber.org/zap"
)

// ApprovalRepository handles approval request database operations
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval request repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

const approvalColumns = `
	id, invoice_id, token, suggested_project_key, confidence_score, reasoning,
	status, approved_project_key, rejection_reason, sent_at, responded_at,
	created_at, updated_at`

// Create inserts a new approval request. The partial unique index on
// (invoice_id) WHERE status = 'PENDING' rejects a second open request
// for the same invoice.
func (r *ApprovalRepository) Create(tx *sql.Tx, req *models.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (
			invoice_id, token, suggested_project_key, confidence_score,
			reasoning, status, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := on(r.db, tx).Exec(query,
		req.InvoiceID,
		req.Token,
		req.SuggestedProjectKey,
		req.ConfidenceScore,
		req.Reasoning,
		req.Status,
		req.SentAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval request",
			zap.Int64("invoice_id", req.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to create approval request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByToken retrieves an approval request by its opaque token.
// Returns nil when no such request exists.
func (r *ApprovalRepository) GetByToken(token string) (*models.ApprovalRequest, error) {
	query := `SELECT` + approvalColumns + ` FROM approval_requests WHERE token = ?`

	req, err := scanApprovalRequest(r.db.QueryRow(query, token).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval request by token", zap.Error(err))
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}
	return req, nil
}

// GetByInvoiceID retrieves all approval requests for an invoice, newest first
func (r *ApprovalRepository) GetByInvoiceID(invoiceID int64) ([]*models.ApprovalRequest, error) {
	query := `SELECT` + approvalColumns + ` FROM approval_requests WHERE invoice_id = ? ORDER BY id DESC`

	rows, err := r.db.Query(query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get approval requests",
			zap.Int64("invoice_id", invoiceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get approval requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.ApprovalRequest
	for rows.Next() {
		req, err := scanApprovalRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Approve resolves a pending request. The status guard in the WHERE clause
// makes concurrent resolutions race safely: exactly one caller sees a
// single affected row, the rest see zero.
func (r *ApprovalRepository) Approve(tx *sql.Tx, id, projectKey int64, respondedAt time.Time) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = ?, approved_project_key = ?, responded_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := on(r.db, tx).Exec(query,
		models.ApprovalStatusApproved,
		projectKey,
		respondedAt,
		respondedAt,
		id,
		models.ApprovalStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to approve request", zap.Int64("request_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to approve request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// Reject resolves a pending request with a reason, guarded like Approve.
func (r *ApprovalRepository) Reject(tx *sql.Tx, id int64, reason string, respondedAt time.Time) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = ?, rejection_reason = ?, responded_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := on(r.db, tx).Exec(query,
		models.ApprovalStatusRejected,
		reason,
		respondedAt,
		respondedAt,
		id,
		models.ApprovalStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to reject request", zap.Int64("request_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to reject request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// ExpireOlderThan moves pending requests sent before the cutoff to EXPIRED
// and returns how many were expired.
func (r *ApprovalRepository) ExpireOlderThan(cutoff time.Time) (int64, error) {
	query := `
		UPDATE approval_requests
		SET status = ?, responded_at = ?, updated_at = ?
		WHERE status = ? AND sent_at IS NOT NULL AND sent_at < ?
	`

	now := time.Now().UTC()
	result, err := r.db.Exec(query,
		models.ApprovalStatusExpired,
		now,
		now,
		models.ApprovalStatusPending,
		cutoff,
	)
	if err != nil {
		r.logger.Error("Failed to expire approval requests", zap.Error(err))
		return 0, fmt.Errorf("failed to expire approval requests: %w", err)
	}
	return result.RowsAffected()
}

func scanApprovalRequest(scan func(dest ...any) error) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	var suggestedKey, approvedKey sql.NullInt64
	var confidence sql.NullFloat64
	var sentAt, respondedAt, updatedAt sql.NullTime

	err := scan(
		&req.ID,
		&req.InvoiceID,
		&req.Token,
		&suggestedKey,
		&confidence,
		&req.Reasoning,
		&req.Status,
		&approvedKey,
		&req.RejectionReason,
		&sentAt,
		&respondedAt,
		&req.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if suggestedKey.Valid {
		req.SuggestedProjectKey = &suggestedKey.Int64
	}
	if approvedKey.Valid {
		req.ApprovedProjectKey = &approvedKey.Int64
	}
	if confidence.Valid {
		req.ConfidenceScore = &confidence.Float64
	}
	if sentAt.Valid {
		req.SentAt = &sentAt.Time
	}
	if respondedAt.Valid {
		req.RespondedAt = &respondedAt.Time
	}
	if updatedAt.Valid {
		req.UpdatedAt = &updatedAt.Time
	}

	return &req, nil
}
