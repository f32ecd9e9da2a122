package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceRepository handles invoice database operations
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{db: db, logger: logger}
}

const invoiceColumns = `
	id, netvisor_invoice_key, invoice_number, vendor_name, amount,
	invoice_date, due_date, ocr_text, ocr_processed_at,
	suggested_project_key, ai_confidence_score, ai_reasoning, ai_analyzed_at,
	final_project_key, updated_to_accounting_at, status, created_at, updated_at`

// Create inserts a new invoice record
func (r *InvoiceRepository) Create(tx *sql.Tx, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (
			netvisor_invoice_key, invoice_number, vendor_name, amount,
			invoice_date, due_date, status
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := on(r.db, tx).Exec(query,
		invoice.NetvisorInvoiceKey,
		invoice.InvoiceNumber,
		invoice.VendorName,
		invoice.Amount.String(),
		invoice.InvoiceDate,
		invoice.DueDate,
		invoice.Status,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	invoice.ID = id
	return nil
}

// Update writes the analysis and assignment fields back to the row
func (r *InvoiceRepository) Update(tx *sql.Tx, invoice *models.Invoice) error {
	query := `
		UPDATE invoices SET
			ocr_text = ?, ocr_processed_at = ?,
			suggested_project_key = ?, ai_confidence_score = ?,
			ai_reasoning = ?, ai_analyzed_at = ?,
			final_project_key = ?, updated_to_accounting_at = ?,
			status = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC()
	invoice.UpdatedAt = &now

	// The column is NOT NULL; an unset reasoning is stored as the empty
	// string and mapped back to nil on scan.
	reasoning := ""
	if invoice.AiReasoning != nil {
		reasoning = *invoice.AiReasoning
	}

	_, err := on(r.db, tx).Exec(query,
		invoice.OcrText,
		invoice.OcrProcessedAt,
		invoice.SuggestedProjectKey,
		invoice.AiConfidenceScore,
		reasoning,
		invoice.AiAnalyzedAt,
		invoice.FinalProjectKey,
		invoice.UpdatedToAccountingAt,
		invoice.Status,
		invoice.UpdatedAt,
		invoice.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice",
			zap.Int64("invoice_id", invoice.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice by its internal ID
func (r *InvoiceRepository) GetByID(id int64) (*models.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByNetvisorKey retrieves an invoice by its accounting-system key.
// Returns nil when no such invoice exists.
func (r *InvoiceRepository) GetByNetvisorKey(key int64) (*models.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE netvisor_invoice_key = ?`
	return r.scanOne(r.db.QueryRow(query, key))
}

// GetByStatus retrieves all invoices in the given status, oldest first
func (r *InvoiceRepository) GetByStatus(status string) ([]*models.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE status = ? ORDER BY id`

	rows, err := r.db.Query(query, status)
	if err != nil {
		r.logger.Error("Failed to get invoices by status", zap.String("status", status), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoices: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// List retrieves invoices newest first for the admin surface
func (r *InvoiceRepository) List(limit, offset int) ([]*models.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices ORDER BY id DESC LIMIT ? OFFSET ?`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *InvoiceRepository) scanAll(rows *sql.Rows) ([]*models.Invoice, error) {
	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (r *InvoiceRepository) scanOne(row *sql.Row) (*models.Invoice, error) {
	invoice, err := scanInvoice(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

func scanInvoice(scan func(dest ...any) error) (*models.Invoice, error) {
	var invoice models.Invoice
	var amount string
	var ocrProcessedAt, aiAnalyzedAt, updatedToAccountingAt, updatedAt sql.NullTime
	var suggestedKey, finalKey sql.NullInt64
	var confidence sql.NullFloat64
	var reasoning sql.NullString

	err := scan(
		&invoice.ID,
		&invoice.NetvisorInvoiceKey,
		&invoice.InvoiceNumber,
		&invoice.VendorName,
		&amount,
		&invoice.InvoiceDate,
		&invoice.DueDate,
		&invoice.OcrText,
		&ocrProcessedAt,
		&suggestedKey,
		&confidence,
		&reasoning,
		&aiAnalyzedAt,
		&finalKey,
		&updatedToAccountingAt,
		&invoice.Status,
		&invoice.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	if ocrProcessedAt.Valid {
		invoice.OcrProcessedAt = &ocrProcessedAt.Time
	}
	if aiAnalyzedAt.Valid {
		invoice.AiAnalyzedAt = &aiAnalyzedAt.Time
	}
	if updatedToAccountingAt.Valid {
		invoice.UpdatedToAccountingAt = &updatedToAccountingAt.Time
	}
	if updatedAt.Valid {
		invoice.UpdatedAt = &updatedAt.Time
	}
	if suggestedKey.Valid {
		invoice.SuggestedProjectKey = &suggestedKey.Int64
	}
	if finalKey.Valid {
		invoice.FinalProjectKey = &finalKey.Int64
	}
	if confidence.Valid {
		invoice.AiConfidenceScore = &confidence.Float64
	}
	if reasoning.Valid && reasoning.String != "" {
		invoice.AiReasoning = &reasoning.String
	}

	return &invoice, nil
}
