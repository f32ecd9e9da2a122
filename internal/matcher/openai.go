package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anyai-fi/invoicerobot/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const matcherSystemPrompt = `You are a project assignment expert for the construction industry.
Your task is to identify which project a purchase invoice belongs to.

Analyze the invoice content carefully and look for:
- Project references (project numbers, codes)
- Addresses
- Construction site names
- Other identifiers

Respond in JSON:
{
  "projectKey": 100,
  "confidence": 0.95,
  "reasoning": "Explanation of why this project was chosen"
}

If you cannot identify a project, respond with:
{
  "projectKey": null,
  "confidence": 0,
  "reasoning": "Insufficient identifiers"
}`

// OpenAIMatcher asks a chat model to identify the project. It is the
// fallback behind the heuristic matcher in the chain.
type OpenAIMatcher struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewOpenAIMatcher creates a matcher backed by the OpenAI chat API.
func NewOpenAIMatcher(apiKey, model string, temperature float32, logger *zap.Logger) *OpenAIMatcher {
	return &OpenAIMatcher{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// NewOpenAIMatcherWithClient creates a matcher with a preconfigured client,
// used by tests and by tools that point at a non-default base URL.
func NewOpenAIMatcherWithClient(client *openai.Client, model string, temperature float32, logger *zap.Logger) *OpenAIMatcher {
	return &OpenAIMatcher{
		client:      client,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// Name returns the method tag recorded on matched invoices.
func (m *OpenAIMatcher) Name() string {
	return "AI"
}

type matchResponse struct {
	ProjectKey *int64  `json:"projectKey"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Match sends the invoice text and project catalog to the model. A null
// projectKey in the response means no match; a malformed response is a
// hard failure and propagates to the caller.
func (m *OpenAIMatcher) Match(ctx context.Context, invoice *models.Invoice, projects []*models.Project) (*Result, error) {
	m.logger.Info("Starting AI analysis",
		zap.String("invoice_number", invoice.InvoiceNumber))

	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: m.temperature,
		MaxTokens:   500,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: matcherSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: m.buildUserPrompt(invoice, projects),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		m.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	m.logger.Debug("AI matcher response", zap.String("content", content))

	var parsed matchResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		m.logger.Error("Failed to parse matcher response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse matcher response: %w", err)
	}

	if parsed.ProjectKey == nil {
		m.logger.Warn("AI matcher could not identify a project",
			zap.String("invoice_number", invoice.InvoiceNumber))
		return nil, nil
	}

	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "AI identified the project"
	}

	result := &Result{
		ProjectKey: *parsed.ProjectKey,
		Confidence: parsed.Confidence,
		Reasoning:  reasoning,
	}

	m.logger.Info("AI match",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int64("project_key", result.ProjectKey),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

// buildUserPrompt lists the invoice details, the extracted text and the
// candidate projects for the model.
func (m *OpenAIMatcher) buildUserPrompt(invoice *models.Invoice, projects []*models.Project) string {
	var sb strings.Builder

	sb.WriteString("Analyze the following purchase invoice and identify the related project.\n\n")
	sb.WriteString("Invoice details:\n")
	fmt.Fprintf(&sb, "- Number: %s\n", invoice.InvoiceNumber)
	fmt.Fprintf(&sb, "- Vendor: %s\n", invoice.VendorName)
	fmt.Fprintf(&sb, "- Amount: %s EUR\n", invoice.Amount.StringFixed(2))
	fmt.Fprintf(&sb, "- Date: %s\n", invoice.InvoiceDate.Format("2006-01-02"))

	sb.WriteString("\nExtracted text:\n")
	sb.WriteString(invoice.OcrText)

	sb.WriteString("\n\nAvailable projects:\n")
	for _, p := range projects {
		address := p.Address
		if address == "" {
			address = "N/A"
		}
		fmt.Fprintf(&sb, "- ProjectKey: %d, Code: %s, Name: %s, Address: %s\n",
			p.NetvisorProjectKey, p.Code, p.Name, address)
	}

	sb.WriteString("\nRespond in JSON.")
	return sb.String()
}
