package matcher

import (
	"context"
	"testing"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func activeProject(key int64, code, name, address string) *models.Project {
	return &models.Project{
		NetvisorProjectKey: key,
		Code:               code,
		Name:               name,
		Address:            address,
		IsActive:           true,
	}
}

func invoiceWithText(text string) *models.Invoice {
	return &models.Invoice{
		InvoiceNumber: "INV-1001",
		VendorName:    "Test Vendor Oy",
		OcrText:       text,
	}
}

func TestHeuristicMatcher_CodeMatch(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	projects := []*models.Project{
		activeProject(100, "PRJ-001", "Tower", ""),
	}

	result, err := m.Match(context.Background(), invoiceWithText("Work done at site PRJ-001, address Main St 123"), projects)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(100), result.ProjectKey)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Contains(t, result.Reasoning, "PRJ-001")
}

func TestHeuristicMatcher_WholeWordOnly(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	projects := []*models.Project{
		activeProject(100, "PRJ-001", "", ""),
	}

	// A longer token sharing the prefix must not award the code bonus
	result, err := m.Match(context.Background(), invoiceWithText("Delivery for PRJ-0012 complete"), projects)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestHeuristicMatcher_NoMatch(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	projects := []*models.Project{
		activeProject(100, "PRJ-001", "Tower", "Main Street 5"),
	}

	result, err := m.Match(context.Background(), invoiceWithText("materials delivered"), projects)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestHeuristicMatcher_EmptyText(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	projects := []*models.Project{
		activeProject(100, "PRJ-001", "Tower", ""),
	}

	result, err := m.Match(context.Background(), invoiceWithText(""), projects)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestHeuristicMatcher_AddressSegmentMatch(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	tests := []struct {
		name       string
		address    string
		text       string
		wantMatch  bool
		confidence float64
	}{
		{
			name:       "full segment substring",
			address:    "Mannerheimintie 123, Helsinki",
			text:       "work performed at mannerheimintie 123 last week",
			wantMatch:  true,
			confidence: 0.7,
		},
		{
			name:       "significant word from segment",
			address:    "Mannerheimintie 123, Helsinki",
			text:       "invoice for helsinki site operations",
			wantMatch:  true,
			confidence: 0.7,
		},
		{
			name:      "short words ignored",
			address:   "Main St 5, Espoo",
			text:      "main st visit",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projects := []*models.Project{
				activeProject(200, "PRJ-XYZ", "", tt.address),
			}

			result, err := m.Match(context.Background(), invoiceWithText(tt.text), projects)
			require.NoError(t, err)

			if !tt.wantMatch {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, tt.confidence, result.Confidence, 1e-9)
		})
	}
}

func TestHeuristicMatcher_AddressNoDoubleCounting(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	// Both segments occur in the text; only the first qualifying one scores
	projects := []*models.Project{
		activeProject(200, "PRJ-XYZ", "", "Mannerheimintie 123, Helsinki"),
	}

	result, err := m.Match(context.Background(), invoiceWithText("mannerheimintie 123, helsinki"), projects)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
}

func TestHeuristicMatcher_NameWordsAdditive(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	projects := []*models.Project{
		activeProject(300, "PRJ-ABC", "Kerrostalo Mannerheimintie", ""),
	}

	// Two name words over four characters: 0.5 + 0.5
	result, err := m.Match(context.Background(), invoiceWithText("concrete for kerrostalo at mannerheimintie"), projects)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.Contains(t, result.Reasoning, "Kerrostalo")
	assert.Contains(t, result.Reasoning, "Mannerheimintie")
}

func TestHeuristicMatcher_ScoreClampedToOne(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	projects := []*models.Project{
		activeProject(300, "PRJ-001", "Kerrostalo Mannerheimintie", "Mannerheimintie 123, Helsinki"),
	}

	// Code + address + two name words would sum past 1.0
	result, err := m.Match(context.Background(),
		invoiceWithText("PRJ-001 kerrostalo mannerheimintie 123 helsinki"), projects)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestHeuristicMatcher_PicksHighestScore(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	projects := []*models.Project{
		activeProject(100, "PRJ-001", "Tower", ""),
		activeProject(200, "PRJ-002", "Harbor Warehouse", ""),
	}

	// Only a name word for project 100, exact code for project 200
	result, err := m.Match(context.Background(), invoiceWithText("tower scaffolding for PRJ-002"), projects)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(200), result.ProjectKey)
}

func TestHeuristicMatcher_IgnoresInactiveProjects(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	inactive := activeProject(100, "PRJ-001", "Tower", "")
	inactive.IsActive = false

	result, err := m.Match(context.Background(), invoiceWithText("work at PRJ-001"), []*models.Project{inactive})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestHeuristicMatcher_Deterministic(t *testing.T) {
	m := NewHeuristicMatcher(zap.NewNop())

	projects := []*models.Project{
		activeProject(100, "PRJ-001", "Tower", "Main Street 123"),
		activeProject(200, "PRJ-002", "Harbor Warehouse", "Dock Road 1"),
	}
	invoice := invoiceWithText("PRJ-001 tower work at main street 123")

	first, err := m.Match(context.Background(), invoice, projects)
	require.NoError(t, err)
	require.NotNil(t, first)

	for range 10 {
		again, err := m.Match(context.Background(), invoice, projects)
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.Equal(t, first, again)
	}
}
