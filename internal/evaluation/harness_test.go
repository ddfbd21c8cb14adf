package evaluation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grounded-qa/internal/common/config"
	"grounded-qa/internal/common/llm"
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/models"
	"grounded-qa/internal/pipeline"
	generateanswer "grounded-qa/internal/stages/generate-answer"
	parsequestion "grounded-qa/internal/stages/parse-question"
	retrieveplans "grounded-qa/internal/stages/retrieve-plans"
)

// ==========================
// Test Helper Functions
// ==========================

// roleStub answers by call role: parser calls carry a system prompt, grounded
// generation prompts embed the factual data marker, everything else is a
// direct answer.
type roleStub struct {
	parseReply    string
	directReply   string
	groundedReply string
}

func (s *roleStub) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if opts.SystemPrompt != "" {
		return s.parseReply, nil
	}
	if strings.Contains(prompt, "Use ONLY the following factual data:") {
		return s.groundedReply, nil
	}
	return s.directReply, nil
}

func writeFixtures(t *testing.T, questions string, expected map[string][]ExpectedRecord) config.EvaluationConfig {
	t.Helper()
	dir := t.TempDir()

	questionsPath := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(questionsPath, []byte(questions), 0o644))

	expectedPath := filepath.Join(dir, "expected.json")
	b, err := json.Marshal(expected)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(expectedPath, b, 0o644))

	return config.EvaluationConfig{
		QuestionsPath:   questionsPath,
		ExpectedPath:    expectedPath,
		ResultsPath:     filepath.Join(dir, "evaluation_results.csv"),
		SummaryPath:     filepath.Join(dir, "summary.json"),
		ConsistencyRuns: 2,
	}
}

func createTestRunner(t *testing.T, cfg config.EvaluationConfig, client llm.Client) *Runner {
	log := logger.NewTestLogger(t)
	ds := &models.Dataset{Records: []models.PlanRecord{
		{Platform: "Dropbox", PlanName: "Basic", Price: 0, BillingPeriod: models.BillingMonthly, StorageGB: 2, Features: []string{"file_sync"}},
		{Platform: "Dropbox", PlanName: "Plus", Price: 15.99, BillingPeriod: models.BillingMonthly, StorageGB: 2048, Features: []string{"file_sync", "offline_access"}},
	}}

	parser := parsequestion.NewHandler(parsequestion.LoadConfig(), client, log)
	retriever := retrieveplans.NewHandler(retrieveplans.LoadConfig(), log)
	generator := generateanswer.NewHandler(generateanswer.LoadConfig(), client, log)
	pipe := pipeline.New(parser, retriever, generator, ds, nil, log)

	return NewRunner(cfg, parser, retriever, pipe, ds, log)
}

// ==========================
// Input Loading Tests
// ==========================

func TestLoadQuestions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(path, []byte("question\nWhat is the cheapest plan?\n\nHow much storage does Plus have?\n"), 0o644))

	questions, err := loadQuestions(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"What is the cheapest plan?", "How much storage does Plus have?"}, questions)
}

func TestLoadQuestions_CapitalizedHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(path, []byte("Question\nWhich plan is largest?\n"), 0o644))

	questions, err := loadQuestions(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"Which plan is largest?"}, questions)
}

func TestLoadQuestions_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(path, []byte("prompt\nsomething\n"), 0o644))

	_, err := loadQuestions(path)

	assert.Error(t, err)
}

func TestLoadExpected_MissingFileIsEmpty(t *testing.T) {
	expected, err := loadExpected(filepath.Join(t.TempDir(), "nope.json"))

	require.NoError(t, err)
	assert.Empty(t, expected)
}

// ==========================
// Full Run Tests
// ==========================

func TestRun_ScoresAndWritesOutputs(t *testing.T) {
	question := "What is the cheapest Dropbox plan?"
	cfg := writeFixtures(t, "question\n"+question+"\n", map[string][]ExpectedRecord{
		question: {{"Platform": "Dropbox", "PlanName": "Basic"}},
	})

	client := &roleStub{
		parseReply:    `{"platform": "Dropbox", "intent": "cheapest", "budget": null, "features": null}`,
		directReply:   "Dropbox Plus: $11.99 monthly.",
		groundedReply: "Dropbox Basic: $0 monthly.",
	}
	runner := createTestRunner(t, cfg, client)

	summary, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalQuestions)
	assert.Equal(t, 100.0, summary.RetrievalAccuracyPercent)
	assert.Equal(t, 100.0, summary.RetrievalSuccessPercent)
	assert.Equal(t, 100.0, summary.ParserConsistencyPercent)
	assert.Equal(t, 100.0, summary.RetrievalConsistencyPercent)

	// The direct answer invents a price; the grounded answer sticks to facts.
	assert.Equal(t, 100.0, summary.HallucinationLLMOnlyPercent)
	assert.Equal(t, 0.0, summary.HallucinationRAGPercent)

	results, err := os.ReadFile(cfg.ResultsPath)
	require.NoError(t, err)
	assert.Contains(t, string(results), question)
	assert.Contains(t, string(results), "Dropbox Basic: $0 monthly.")

	summaryBytes, err := os.ReadFile(cfg.SummaryPath)
	require.NoError(t, err)
	var onDisk Summary
	require.NoError(t, json.Unmarshal(summaryBytes, &onDisk))
	assert.Equal(t, *summary, onDisk)
}

func TestRun_UnparseableQuestionStillScored(t *testing.T) {
	question := "Tell me a joke about clouds"
	cfg := writeFixtures(t, "question\n"+question+"\n", map[string][]ExpectedRecord{})

	client := &roleStub{
		parseReply:    "this is not json",
		directReply:   "Why did the cloud break up? Too much storage baggage.",
		groundedReply: "unused",
	}
	runner := createTestRunner(t, cfg, client)

	summary, err := runner.Run(context.Background())

	require.NoError(t, err, "stage failures are scored, not fatal")
	assert.Equal(t, 1, summary.TotalQuestions)
	assert.Equal(t, 0.0, summary.RetrievalSuccessPercent)
	assert.Equal(t, 100.0, summary.ParserConsistencyPercent, "consistently failing parses count as consistent")
}
