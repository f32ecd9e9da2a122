package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/approval"
	"github.com/anyai-fi/invoicerobot/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubApprovalService struct {
	lookupFunc   func(token string) (*models.ApprovalRequest, error)
	resolveFunc  func(decision approval.Decision) (approval.Outcome, error)
	lastDecision approval.Decision
}

func (s *stubApprovalService) Lookup(token string) (*models.ApprovalRequest, error) {
	return s.lookupFunc(token)
}

func (s *stubApprovalService) Resolve(_ context.Context, decision approval.Decision) (approval.Outcome, error) {
	s.lastDecision = decision
	return s.resolveFunc(decision)
}

type stubInvoiceReader struct {
	listFunc    func(limit, offset int) ([]*models.Invoice, error)
	getByIDFunc func(id int64) (*models.Invoice, error)
}

func (s *stubInvoiceReader) List(limit, offset int) ([]*models.Invoice, error) {
	return s.listFunc(limit, offset)
}

func (s *stubInvoiceReader) GetByID(id int64) (*models.Invoice, error) {
	return s.getByIDFunc(id)
}

type stubHistoryReader struct {
	requests []*models.ApprovalRequest
}

func (s *stubHistoryReader) GetByInvoiceID(int64) ([]*models.ApprovalRequest, error) {
	return s.requests, nil
}

type stubProjectReader struct {
	projects []*models.Project
}

func (s *stubProjectReader) GetActive() ([]*models.Project, error) {
	return s.projects, nil
}

type stubExporter struct{}

func (stubExporter) Export([]*models.Invoice) ([]byte, error) {
	return []byte("xlsx-bytes"), nil
}

func newTestServer(approvals *stubApprovalService, invoices *stubInvoiceReader, projects *stubProjectReader) *Server {
	return newTestServerWithHistory(approvals, invoices, &stubHistoryReader{}, projects)
}

func newTestServerWithHistory(approvals *stubApprovalService, invoices *stubInvoiceReader, history *stubHistoryReader, projects *stubProjectReader) *Server {
	handlers := NewHandlers(approvals, invoices, history, projects, stubExporter{}, zap.NewNop())
	return NewServer(Config{Host: "127.0.0.1", Port: 0}, handlers, zap.NewNop())
}

func pendingRequestFixture() *models.ApprovalRequest {
	key := int64(200)
	conf := 0.7
	return &models.ApprovalRequest{
		ID:                  1,
		InvoiceID:           10,
		Token:               "tok-1",
		SuggestedProjectKey: &key,
		ConfidenceScore:     &conf,
		Reasoning:           "Address match",
		Status:              models.ApprovalStatusPending,
	}
}

func invoiceFixture() *models.Invoice {
	return &models.Invoice{
		ID:            10,
		InvoiceNumber: "INV-10",
		VendorName:    "Betoni Oy",
		Amount:        decimal.RequireFromString("1250.50"),
		InvoiceDate:   time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
		Status:        models.InvoiceStatusPendingApproval,
	}
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func postForm(t *testing.T, srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(&stubApprovalService{}, &stubInvoiceReader{}, &stubProjectReader{})

	w := get(t, srv, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestShowApprovalForm_PreselectsSuggestedProject(t *testing.T) {
	approvals := &stubApprovalService{
		lookupFunc: func(string) (*models.ApprovalRequest, error) { return pendingRequestFixture(), nil },
	}
	invoices := &stubInvoiceReader{
		getByIDFunc: func(int64) (*models.Invoice, error) { return invoiceFixture(), nil },
	}
	projects := &stubProjectReader{projects: []*models.Project{
		{NetvisorProjectKey: 100, Code: "PRJ-001", Name: "Kerrostalo Keskusta"},
		{NetvisorProjectKey: 200, Code: "PRJ-002", Name: "Rivitalo Itäkeskus"},
	}}

	w := get(t, newTestServer(approvals, invoices, projects), "/approval?token=tok-1")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "INV-10")
	assert.Contains(t, body, "1250.50")
	assert.Contains(t, body, `value="200" selected`)
	assert.Contains(t, body, "PRJ-001")
}

func TestShowApprovalForm_UnknownToken(t *testing.T) {
	approvals := &stubApprovalService{
		lookupFunc: func(string) (*models.ApprovalRequest, error) { return nil, nil },
	}

	w := get(t, newTestServer(approvals, &stubInvoiceReader{}, &stubProjectReader{}), "/approval?token=missing")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShowApprovalForm_AlreadyProcessed(t *testing.T) {
	request := pendingRequestFixture()
	request.Status = models.ApprovalStatusApproved
	approvals := &stubApprovalService{
		lookupFunc: func(string) (*models.ApprovalRequest, error) { return request, nil },
	}

	w := get(t, newTestServer(approvals, &stubInvoiceReader{}, &stubProjectReader{}), "/approval?token=tok-1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jo käsitelty")
}

func TestSubmitApproval_Approve(t *testing.T) {
	approvals := &stubApprovalService{
		resolveFunc: func(approval.Decision) (approval.Outcome, error) { return approval.OutcomeApproved, nil },
	}
	srv := newTestServer(approvals, &stubInvoiceReader{}, &stubProjectReader{})

	w := postForm(t, srv, "/approval", url.Values{
		"token":       {"tok-1"},
		"decision":    {"approve"},
		"project_key": {"200"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hyväksytty")
	assert.True(t, approvals.lastDecision.Approve)
	assert.Equal(t, int64(200), approvals.lastDecision.ProjectKey)
	assert.Equal(t, "tok-1", approvals.lastDecision.Token)
}

func TestSubmitApproval_Reject(t *testing.T) {
	approvals := &stubApprovalService{
		resolveFunc: func(approval.Decision) (approval.Outcome, error) { return approval.OutcomeRejected, nil },
	}
	srv := newTestServer(approvals, &stubInvoiceReader{}, &stubProjectReader{})

	w := postForm(t, srv, "/approval", url.Values{
		"token":    {"tok-1"},
		"decision": {"reject"},
		"reason":   {"wrong vendor"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, approvals.lastDecision.Approve)
	assert.Equal(t, "wrong vendor", approvals.lastDecision.RejectionReason)
}

func TestSubmitApproval_MissingProjectKey(t *testing.T) {
	srv := newTestServer(&stubApprovalService{}, &stubInvoiceReader{}, &stubProjectReader{})

	w := postForm(t, srv, "/approval", url.Values{
		"token":    {"tok-1"},
		"decision": {"approve"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitApproval_AccountingFailure(t *testing.T) {
	approvals := &stubApprovalService{
		resolveFunc: func(approval.Decision) (approval.Outcome, error) { return approval.OutcomeAccountingFailed, nil },
	}
	srv := newTestServer(approvals, &stubInvoiceReader{}, &stubProjectReader{})

	w := postForm(t, srv, "/approval", url.Values{
		"token":       {"tok-1"},
		"decision":    {"approve"},
		"project_key": {"200"},
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestListInvoices(t *testing.T) {
	invoices := &stubInvoiceReader{
		listFunc: func(limit, offset int) ([]*models.Invoice, error) {
			assert.Equal(t, 50, limit)
			assert.Equal(t, 0, offset)
			return []*models.Invoice{invoiceFixture()}, nil
		},
	}
	srv := newTestServer(&stubApprovalService{}, invoices, &stubProjectReader{})

	w := get(t, srv, "/api/invoices")

	require.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestGetInvoice_NotFound(t *testing.T) {
	invoices := &stubInvoiceReader{
		getByIDFunc: func(int64) (*models.Invoice, error) { return nil, nil },
	}
	srv := newTestServer(&stubApprovalService{}, invoices, &stubProjectReader{})

	w := get(t, srv, "/api/invoices/99")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetInvoice_IncludesApprovalHistory(t *testing.T) {
	invoices := &stubInvoiceReader{
		getByIDFunc: func(id int64) (*models.Invoice, error) {
			inv := invoiceFixture()
			inv.ID = id
			return inv, nil
		},
	}
	rejected := pendingRequestFixture()
	rejected.Status = models.ApprovalStatusRejected
	rejected.RejectionReason = "Wrong site"
	history := &stubHistoryReader{
		requests: []*models.ApprovalRequest{rejected, pendingRequestFixture()},
	}
	srv := newTestServerWithHistory(&stubApprovalService{}, invoices, history, &stubProjectReader{})

	w := get(t, srv, "/api/invoices/10")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                  `json:"success"`
		Data    InvoiceDetailResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "INV-10", resp.Data.InvoiceNumber)
	require.Len(t, resp.Data.ApprovalRequests, 2)
	assert.Equal(t, models.ApprovalStatusRejected, resp.Data.ApprovalRequests[0].Status)
	assert.Equal(t, "Wrong site", resp.Data.ApprovalRequests[0].RejectionReason)
	assert.Equal(t, models.ApprovalStatusPending, resp.Data.ApprovalRequests[1].Status)

	// Approval tokens never appear in the admin API.
	assert.NotContains(t, w.Body.String(), "tok-1")
}

func TestExportInvoices(t *testing.T) {
	invoices := &stubInvoiceReader{
		listFunc: func(int, int) ([]*models.Invoice, error) { return nil, nil },
	}
	srv := newTestServer(&stubApprovalService{}, invoices, &stubProjectReader{})

	w := get(t, srv, "/api/invoices/export")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.Equal(t, "xlsx-bytes", w.Body.String())
}
