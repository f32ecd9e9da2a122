// Package email builds and sends approval request notifications to
// project managers.
package email

import (
	"context"
	"fmt"
	"net/url"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"go.uber.org/zap"
)

// Mailer is the outbound mail transport.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// LogMailer writes the message to the log instead of sending it. Used in
// development and as the default transport until an SMTP or provider
// integration is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a log-only mail transport.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.logger.Info("Email (log transport)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)))
	return nil
}

// Config holds the sender policy.
type Config struct {
	// ApprovalBaseURL is the public base URL of the approval form, e.g.
	// https://invoicerobot.example.com. The token is appended as a query
	// parameter.
	ApprovalBaseURL string
	// FallbackApprover receives the request when the matched project has
	// no manager email.
	FallbackApprover string
}

// Sender composes approval request emails. It satisfies the analyzer's
// notifier port.
type Sender struct {
	cfg    Config
	mailer Mailer
	logger *zap.Logger
}

// NewSender creates an approval email sender.
func NewSender(cfg Config, mailer Mailer, logger *zap.Logger) *Sender {
	return &Sender{cfg: cfg, mailer: mailer, logger: logger}
}

// SendApprovalRequest emails the responsible project manager a link to the
// approval form. project may be nil when the suggested project vanished
// from the catalog between matching and sending.
func (s *Sender) SendApprovalRequest(ctx context.Context, invoice *models.Invoice, req *models.ApprovalRequest, project *models.Project) error {
	to := s.recipient(project)
	if to == "" {
		return fmt.Errorf("no recipient for approval request %s", req.Token)
	}

	subject := fmt.Sprintf("Hyväksyntäpyyntö: lasku %s (%s)", invoice.InvoiceNumber, invoice.VendorName)
	body := s.buildBody(invoice, req, project)

	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("failed to send approval email: %w", err)
	}

	s.logger.Info("Approval request email sent",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("to", to))
	return nil
}

func (s *Sender) recipient(project *models.Project) string {
	if project != nil && project.ProjectManagerEmail != "" {
		return project.ProjectManagerEmail
	}
	return s.cfg.FallbackApprover
}

// ApprovalURL builds the public form link for a token.
func (s *Sender) ApprovalURL(token string) string {
	return fmt.Sprintf("%s/approval?token=%s", s.cfg.ApprovalBaseURL, url.QueryEscape(token))
}

func (s *Sender) buildBody(invoice *models.Invoice, req *models.ApprovalRequest, project *models.Project) string {
	projectLabel := "tuntematon projekti"
	if project != nil {
		projectLabel = fmt.Sprintf("%s %s", project.Code, project.Name)
	}

	confidence := 0.0
	if req.ConfidenceScore != nil {
		confidence = *req.ConfidenceScore
	}

	return fmt.Sprintf(`<html><body>
<p>Ostolasku odottaa projektikohdistuksen hyväksyntää.</p>
<table>
  <tr><td>Laskun numero</td><td>%s</td></tr>
  <tr><td>Toimittaja</td><td>%s</td></tr>
  <tr><td>Summa</td><td>%s EUR</td></tr>
  <tr><td>Ehdotettu projekti</td><td>%s</td></tr>
  <tr><td>Luottamus</td><td>%.0f %%</td></tr>
  <tr><td>Perustelu</td><td>%s</td></tr>
</table>
<p><a href="%s">Avaa hyväksyntälomake</a></p>
<p>Tämä viesti on lähetetty automaattisesti, älä vastaa siihen.</p>
</body></html>`,
		invoice.InvoiceNumber,
		invoice.VendorName,
		invoice.Amount.StringFixed(2),
		projectLabel,
		confidence*100,
		req.Reasoning,
		s.ApprovalURL(req.Token),
	)
}
