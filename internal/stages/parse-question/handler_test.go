package parsequestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "grounded-qa/internal/common/errors"
	"grounded-qa/internal/common/llm"
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

// stubClient returns canned text so the parser can be exercised without a
// network round trip.
type stubClient struct {
	reply      string
	err        error
	lastPrompt string
	lastOpts   llm.Options
}

func (s *stubClient) Generate(_ context.Context, prompt string, opts llm.Options) (string, error) {
	s.lastPrompt = prompt
	s.lastOpts = opts
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func createTestHandler(t *testing.T, client llm.Client) *Handler {
	return NewHandler(LoadConfig(), client, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Parse_Success(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected *models.ParsedQuery
	}{
		{
			name:  "cheapest with platform",
			reply: `{"platform": "Dropbox", "intent": "cheapest", "budget": null, "features": null}`,
			expected: &models.ParsedQuery{
				Platform: "Dropbox",
				Intent:   models.IntentCheapest,
			},
		},
		{
			name:  "no platform mentioned",
			reply: `{"platform": null, "intent": "cheapest", "budget": null, "features": null}`,
			expected: &models.ParsedQuery{
				Intent: models.IntentCheapest,
			},
		},
		{
			name:  "budget range with both bounds",
			reply: `{"platform": "OneDrive", "intent": "budget_range", "budget": {"min": 5, "max": 15}, "features": null}`,
			expected: &models.ParsedQuery{
				Platform: "OneDrive",
				Intent:   models.IntentBudgetRange,
				Budget:   &models.BudgetRange{Min: 5, Max: 15},
			},
		},
		{
			name:  "budget with only max fills open min",
			reply: `{"platform": null, "intent": "budget_range", "budget": {"min": null, "max": 10}, "features": null}`,
			expected: &models.ParsedQuery{
				Intent: models.IntentBudgetRange,
				Budget: &models.BudgetRange{Min: 0, Max: 10},
			},
		},
		{
			name:  "budget with only min fills open max",
			reply: `{"platform": null, "intent": "budget_range", "budget": {"min": 20, "max": null}, "features": null}`,
			expected: &models.ParsedQuery{
				Intent: models.IntentBudgetRange,
				Budget: &models.BudgetRange{Min: 20, Max: maxBudget},
			},
		},
		{
			name:  "feature match",
			reply: `{"platform": "Box", "intent": "feature_match", "budget": null, "features": ["encryption", "offline_access"]}`,
			expected: &models.ParsedQuery{
				Platform:         "Box",
				Intent:           models.IntentFeatureMatch,
				RequiredFeatures: []string{"encryption", "offline_access"},
			},
		},
		{
			name:  "unrecognized platform maps to absent",
			reply: `{"platform": "MegaCloud", "intent": "cheapest", "budget": null, "features": null}`,
			expected: &models.ParsedQuery{
				Intent: models.IntentCheapest,
			},
		},
		{
			name:  "unrecognized intent maps to unknown",
			reply: `{"platform": "Dropbox", "intent": "compare_everything", "budget": null, "features": null}`,
			expected: &models.ParsedQuery{
				Platform: "Dropbox",
				Intent:   models.IntentUnknown,
			},
		},
		{
			name:  "platform name is case-insensitive",
			reply: `{"platform": "google drive", "intent": "largest", "budget": null, "features": null}`,
			expected: &models.ParsedQuery{
				Platform: "Google Drive",
				Intent:   models.IntentLargest,
			},
		},
		{
			name: "markdown code fence is tolerated",
			reply: "```json\n" +
				`{"platform": "Dropbox", "intent": "cheapest", "budget": null, "features": null}` +
				"\n```",
			expected: &models.ParsedQuery{
				Platform: "Dropbox",
				Intent:   models.IntentCheapest,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t, &stubClient{reply: tt.reply})

			query, err := handler.Parse(context.Background(), "question text")

			require.NoError(t, err)
			assert.Equal(t, tt.expected, query)
		})
	}
}

func TestHandler_Parse_MalformedOutput(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "not json", reply: "The cheapest plan is Dropbox Basic."},
		{name: "json array instead of object", reply: `["cheapest"]`},
		{name: "missing intent", reply: `{"platform": "Dropbox", "budget": null, "features": null}`},
		{name: "intent wrong type", reply: `{"platform": null, "intent": 3, "budget": null, "features": null}`},
		{name: "budget wrong shape", reply: `{"platform": null, "intent": "budget_range", "budget": {"low": 1}, "features": null}`},
		{name: "extra top-level field", reply: `{"platform": null, "intent": "cheapest", "budget": null, "features": null, "note": "hi"}`},
		{name: "truncated json", reply: `{"platform": "Dropbox", "intent": "chea`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t, &stubClient{reply: tt.reply})

			query, err := handler.Parse(context.Background(), "question text")

			require.Error(t, err)
			assert.Nil(t, query, "malformed output must never yield a partial query")
			assert.True(t, commonerrors.IsParseError(err), "expected PARSE_ERROR, got %v", err)
		})
	}
}

func TestHandler_Parse_UpstreamErrorPropagates(t *testing.T) {
	upstream := commonerrors.NewUpstreamError("llm-client", errors.New("connection refused"))
	handler := createTestHandler(t, &stubClient{err: upstream})

	_, err := handler.Parse(context.Background(), "question text")

	require.Error(t, err)
	assert.True(t, commonerrors.IsUpstreamError(err))
	assert.False(t, commonerrors.IsParseError(err), "upstream failure must not be reported as a parse failure")
}

func TestHandler_Parse_SendsQuestionAndSystemPrompt(t *testing.T) {
	stub := &stubClient{reply: `{"platform": null, "intent": "cheapest", "budget": null, "features": null}`}
	handler := createTestHandler(t, stub)

	_, err := handler.Parse(context.Background(), "What's the cheapest plan overall?")

	require.NoError(t, err)
	assert.Equal(t, "What's the cheapest plan overall?", stub.lastPrompt)
	assert.Contains(t, stub.lastOpts.SystemPrompt, "semantic parser")
	assert.Contains(t, stub.lastOpts.SystemPrompt, "Output pure JSON only")
}

func TestDecodeParsedQuery_EmptyFeatureStringsDropped(t *testing.T) {
	query, err := decodeParsedQuery(`{"platform": null, "intent": "feature_match", "budget": null, "features": ["encryption", "", "  "]}`)

	require.NoError(t, err)
	assert.Equal(t, []string{"encryption"}, query.RequiredFeatures)
}
