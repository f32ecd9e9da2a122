package matcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anyai-fi/invoicerobot/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newFakeOpenAI returns a matcher wired to an httptest server that always
// replies with the given chat message content.
func newFakeOpenAI(t *testing.T, content string) (*OpenAIMatcher, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	client := openai.NewClientWithConfig(cfg)

	return NewOpenAIMatcherWithClient(client, "gpt-4o", 0.3, zap.NewNop()), srv
}

func TestOpenAIMatcher_ParsesMatch(t *testing.T) {
	m, srv := newFakeOpenAI(t, `{"projectKey": 200, "confidence": 0.7, "reasoning": "address matched"}`)
	defer srv.Close()

	result, err := m.Match(context.Background(), invoiceWithText("some text"), []*models.Project{
		activeProject(200, "PRJ-002", "Harbor Warehouse", ""),
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(200), result.ProjectKey)
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
	assert.Equal(t, "address matched", result.Reasoning)
}

func TestOpenAIMatcher_NullProjectKeyMeansNoMatch(t *testing.T) {
	m, srv := newFakeOpenAI(t, `{"projectKey": null, "confidence": 0, "reasoning": "Insufficient identifiers"}`)
	defer srv.Close()

	result, err := m.Match(context.Background(), invoiceWithText("some text"), nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestOpenAIMatcher_MalformedResponseIsError(t *testing.T) {
	m, srv := newFakeOpenAI(t, "I think it is project 200")
	defer srv.Close()

	result, err := m.Match(context.Background(), invoiceWithText("some text"), nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "parse")
}

func TestOpenAIMatcher_PromptIncludesProjects(t *testing.T) {
	m := NewOpenAIMatcher("test-key", "gpt-4o", 0.3, zap.NewNop())

	invoice := invoiceWithText("OCR CONTENT HERE")
	prompt := m.buildUserPrompt(invoice, []*models.Project{
		activeProject(100, "PRJ-001", "Tower", "Main Street 123"),
		activeProject(200, "PRJ-002", "Harbor Warehouse", ""),
	})

	assert.Contains(t, prompt, "ProjectKey: 100")
	assert.Contains(t, prompt, "PRJ-002")
	assert.Contains(t, prompt, "Address: N/A")
	assert.Contains(t, prompt, "OCR CONTENT HERE")
}
