package api

import (
	"context"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anyai-fi/invoicerobot/internal/approval"
	"github.com/anyai-fi/invoicerobot/internal/models"
)

// ApprovalService resolves approval tokens.
type ApprovalService interface {
	Lookup(token string) (*models.ApprovalRequest, error)
	Resolve(ctx context.Context, decision approval.Decision) (approval.Outcome, error)
}

// InvoiceReader is the read-only invoice surface for the admin endpoints.
type InvoiceReader interface {
	List(limit, offset int) ([]*models.Invoice, error)
	GetByID(id int64) (*models.Invoice, error)
}

// ApprovalHistoryReader lists the approval requests raised for an invoice.
type ApprovalHistoryReader interface {
	GetByInvoiceID(invoiceID int64) ([]*models.ApprovalRequest, error)
}

// ProjectReader lists the active project catalog for the approval form.
type ProjectReader interface {
	GetActive() ([]*models.Project, error)
}

// ReportExporter renders invoice listings as xlsx workbooks.
type ReportExporter interface {
	Export(invoices []*models.Invoice) ([]byte, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvals ApprovalService
	invoices  InvoiceReader
	history   ApprovalHistoryReader
	projects  ProjectReader
	exporter  ReportExporter
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(approvals ApprovalService, invoices InvoiceReader, history ApprovalHistoryReader, projects ProjectReader, exporter ReportExporter, logger *zap.Logger) *Handlers {
	return &Handlers{
		approvals: approvals,
		invoices:  invoices,
		history:   history,
		projects:  projects,
		exporter:  exporter,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                  int64    `json:"id"`
	NetvisorInvoiceKey  int64    `json:"netvisor_invoice_key"`
	InvoiceNumber       string   `json:"invoice_number"`
	VendorName          string   `json:"vendor_name"`
	Amount              string   `json:"amount"`
	InvoiceDate         string   `json:"invoice_date"`
	Status              string   `json:"status"`
	SuggestedProjectKey *int64   `json:"suggested_project_key,omitempty"`
	AiConfidenceScore   *float64 `json:"ai_confidence_score,omitempty"`
	AiReasoning         *string  `json:"ai_reasoning,omitempty"`
	FinalProjectKey     *int64   `json:"final_project_key,omitempty"`
	UpdatedToAccounting *string  `json:"updated_to_accounting_at,omitempty"`
}

func toInvoiceResponse(inv *models.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:                  inv.ID,
		NetvisorInvoiceKey:  inv.NetvisorInvoiceKey,
		InvoiceNumber:       inv.InvoiceNumber,
		VendorName:          inv.VendorName,
		Amount:              inv.Amount.StringFixed(2),
		InvoiceDate:         inv.InvoiceDate.Format("2006-01-02"),
		Status:              inv.Status,
		SuggestedProjectKey: inv.SuggestedProjectKey,
		AiConfidenceScore:   inv.AiConfidenceScore,
		AiReasoning:         inv.AiReasoning,
		FinalProjectKey:     inv.FinalProjectKey,
	}
	if inv.UpdatedToAccountingAt != nil {
		s := inv.UpdatedToAccountingAt.Format(time.RFC3339)
		resp.UpdatedToAccounting = &s
	}
	return resp
}

// ApprovalRequestResponse is one approval request in the invoice detail.
// The token is deliberately absent: it is a credential, not data.
type ApprovalRequestResponse struct {
	ID                  int64    `json:"id"`
	Status              string   `json:"status"`
	SuggestedProjectKey *int64   `json:"suggested_project_key,omitempty"`
	ConfidenceScore     *float64 `json:"confidence_score,omitempty"`
	Reasoning           string   `json:"reasoning,omitempty"`
	ApprovedProjectKey  *int64   `json:"approved_project_key,omitempty"`
	RejectionReason     string   `json:"rejection_reason,omitempty"`
	SentAt              *string  `json:"sent_at,omitempty"`
	RespondedAt         *string  `json:"responded_at,omitempty"`
}

// InvoiceDetailResponse extends the listing row with the invoice's
// approval history.
type InvoiceDetailResponse struct {
	InvoiceResponse
	ApprovalRequests []ApprovalRequestResponse `json:"approval_requests"`
}

func toApprovalResponse(req *models.ApprovalRequest) ApprovalRequestResponse {
	resp := ApprovalRequestResponse{
		ID:                  req.ID,
		Status:              req.Status,
		SuggestedProjectKey: req.SuggestedProjectKey,
		ConfidenceScore:     req.ConfidenceScore,
		Reasoning:           req.Reasoning,
		ApprovedProjectKey:  req.ApprovedProjectKey,
		RejectionReason:     req.RejectionReason,
	}
	if req.SentAt != nil {
		s := req.SentAt.Format(time.RFC3339)
		resp.SentAt = &s
	}
	if req.RespondedAt != nil {
		s := req.RespondedAt.Format(time.RFC3339)
		resp.RespondedAt = &s
	}
	return resp
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ShowApprovalForm renders the approval form for a pending token.
func (h *Handlers) ShowApprovalForm(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		h.renderMessage(c, http.StatusBadRequest, "Puuttuva tunniste", "Linkistä puuttuu hyväksyntätunniste.")
		return
	}

	request, err := h.approvals.Lookup(token)
	if err != nil {
		h.logger.Error("Failed to look up approval token", zap.Error(err))
		h.renderMessage(c, http.StatusInternalServerError, "Virhe", "Pyynnön haku epäonnistui, yritä myöhemmin uudelleen.")
		return
	}
	if request == nil {
		h.renderMessage(c, http.StatusNotFound, "Tuntematon tunniste", "Hyväksyntäpyyntöä ei löytynyt.")
		return
	}
	if !request.IsPending() {
		h.renderMessage(c, http.StatusOK, "Jo käsitelty", "Tämä hyväksyntäpyyntö on jo käsitelty.")
		return
	}

	invoice, err := h.invoices.GetByID(request.InvoiceID)
	if err != nil || invoice == nil {
		h.logger.Error("Failed to load invoice for approval form", zap.Error(err))
		h.renderMessage(c, http.StatusInternalServerError, "Virhe", "Laskun haku epäonnistui.")
		return
	}

	projects, err := h.projects.GetActive()
	if err != nil {
		h.logger.Error("Failed to load projects for approval form", zap.Error(err))
		h.renderMessage(c, http.StatusInternalServerError, "Virhe", "Projektien haku epäonnistui.")
		return
	}

	var suggestedKey int64
	if request.SuggestedProjectKey != nil {
		suggestedKey = *request.SuggestedProjectKey
	}
	confidence := 0.0
	if request.ConfidenceScore != nil {
		confidence = *request.ConfidenceScore
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err = formTemplate.Execute(c.Writer, formView{
		Token:         token,
		InvoiceNumber: invoice.InvoiceNumber,
		VendorName:    invoice.VendorName,
		Amount:        invoice.Amount.StringFixed(2),
		Confidence:    int(confidence * 100),
		Reasoning:     request.Reasoning,
		SuggestedKey:  suggestedKey,
		Projects:      projects,
	})
	if err != nil {
		h.logger.Error("Failed to render approval form", zap.Error(err))
	}
}

// SubmitApproval applies the decision posted from the form.
func (h *Handlers) SubmitApproval(c *gin.Context) {
	token := c.PostForm("token")
	action := c.PostForm("decision")

	decision := approval.Decision{Token: token}
	switch action {
	case "approve":
		projectKey, err := strconv.ParseInt(c.PostForm("project_key"), 10, 64)
		if err != nil {
			h.renderMessage(c, http.StatusBadRequest, "Virheellinen valinta", "Valitse projekti ennen hyväksymistä.")
			return
		}
		decision.Approve = true
		decision.ProjectKey = projectKey
	case "reject":
		decision.RejectionReason = c.PostForm("reason")
	default:
		h.renderMessage(c, http.StatusBadRequest, "Virheellinen pyyntö", "Tuntematon toiminto.")
		return
	}

	outcome, err := h.approvals.Resolve(c.Request.Context(), decision)
	if err != nil {
		h.logger.Error("Failed to resolve approval", zap.Error(err))
		h.renderMessage(c, http.StatusInternalServerError, "Virhe", "Päätöksen tallennus epäonnistui, yritä uudelleen.")
		return
	}

	switch outcome {
	case approval.OutcomeApproved:
		h.renderMessage(c, http.StatusOK, "Hyväksytty", "Lasku on kohdistettu valitulle projektille.")
	case approval.OutcomeRejected:
		h.renderMessage(c, http.StatusOK, "Hylätty", "Ehdotus on hylätty.")
	case approval.OutcomeAlreadyProcessed:
		h.renderMessage(c, http.StatusOK, "Jo käsitelty", "Tämä hyväksyntäpyyntö on jo käsitelty.")
	case approval.OutcomeNotFound:
		h.renderMessage(c, http.StatusNotFound, "Tuntematon tunniste", "Hyväksyntäpyyntöä ei löytynyt.")
	case approval.OutcomeAccountingFailed:
		h.renderMessage(c, http.StatusBadGateway, "Kirjanpitovirhe", "Päivitys kirjanpitoon epäonnistui, yritä myöhemmin uudelleen.")
	default:
		h.renderMessage(c, http.StatusInternalServerError, "Virhe", "Tuntematon lopputulos.")
	}
}

// ListInvoices returns a page of invoices, newest first.
func (h *Handlers) ListInvoices(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	invoices, err := h.invoices.List(limit, offset)
	if err != nil {
		h.logger.Error("Failed to list invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: "failed to list invoices"})
		return
	}

	resp := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		resp = append(resp, toInvoiceResponse(inv))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// GetInvoice returns one invoice by id, with its approval history.
func (h *Handlers) GetInvoice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid invoice id"})
		return
	}

	invoice, err := h.invoices.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to get invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: "failed to get invoice"})
		return
	}
	if invoice == nil {
		c.JSON(http.StatusNotFound, Response{Error: "invoice not found"})
		return
	}

	requests, err := h.history.GetByInvoiceID(invoice.ID)
	if err != nil {
		h.logger.Error("Failed to get approval history",
			zap.Int64("invoice_id", invoice.ID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: "failed to get approval history"})
		return
	}

	detail := InvoiceDetailResponse{
		InvoiceResponse:  toInvoiceResponse(invoice),
		ApprovalRequests: make([]ApprovalRequestResponse, 0, len(requests)),
	}
	for _, req := range requests {
		detail.ApprovalRequests = append(detail.ApprovalRequests, toApprovalResponse(req))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// ExportInvoices streams the invoice listing as an xlsx workbook.
func (h *Handlers) ExportInvoices(c *gin.Context) {
	invoices, err := h.invoices.List(10000, 0)
	if err != nil {
		h.logger.Error("Failed to list invoices for export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: "failed to list invoices"})
		return
	}

	data, err := h.exporter.Export(invoices)
	if err != nil {
		h.logger.Error("Failed to export invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: "failed to export invoices"})
		return
	}

	filename := "invoices-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handlers) renderMessage(c *gin.Context, status int, title, message string) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := messageTemplate.Execute(c.Writer, messageView{Title: title, Message: message}); err != nil {
		h.logger.Error("Failed to render message page", zap.Error(err))
	}
}

type formView struct {
	Token         string
	InvoiceNumber string
	VendorName    string
	Amount        string
	Confidence    int
	Reasoning     string
	SuggestedKey  int64
	Projects      []*models.Project
}

type messageView struct {
	Title   string
	Message string
}

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html lang="fi">
<head><meta charset="utf-8"><title>Laskun hyväksyntä</title></head>
<body>
<h1>Laskun projektikohdistus</h1>
<table>
  <tr><td>Laskun numero</td><td>{{.InvoiceNumber}}</td></tr>
  <tr><td>Toimittaja</td><td>{{.VendorName}}</td></tr>
  <tr><td>Summa</td><td>{{.Amount}} EUR</td></tr>
  <tr><td>Luottamus</td><td>{{.Confidence}} %</td></tr>
  <tr><td>Perustelu</td><td>{{.Reasoning}}</td></tr>
</table>
<form method="post" action="/approval">
  <input type="hidden" name="token" value="{{.Token}}">
  <label for="project_key">Projekti</label>
  <select name="project_key" id="project_key">
    {{range .Projects}}<option value="{{.NetvisorProjectKey}}"{{if eq .NetvisorProjectKey $.SuggestedKey}} selected{{end}}>{{.Code}} {{.Name}}</option>
    {{end}}
  </select>
  <label for="reason">Hylkäyksen syy</label>
  <textarea name="reason" id="reason"></textarea>
  <button type="submit" name="decision" value="approve">Hyväksy</button>
  <button type="submit" name="decision" value="reject">Hylkää</button>
</form>
</body>
</html>`))

var messageTemplate = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html lang="fi">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>`))
