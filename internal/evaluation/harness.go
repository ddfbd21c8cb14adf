package evaluation

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"grounded-qa/internal/common/config"
	commonerrors "grounded-qa/internal/common/errors"
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/models"
	"grounded-qa/internal/pipeline"
	parsequestion "grounded-qa/internal/stages/parse-question"
	retrieveplans "grounded-qa/internal/stages/retrieve-plans"
)

// QuestionResult is one row of the evaluation output.
type QuestionResult struct {
	Question  string              `json:"question"`
	Expected  []ExpectedRecord    `json:"expected"`
	Retrieved []models.PlanRecord `json:"retrieved"`
	LLMOnly   string              `json:"llm_only"`
	RAG       string              `json:"rag"`
}

// Summary aggregates the scores over the whole question set.
type Summary struct {
	TotalQuestions              int     `json:"total_questions"`
	RetrievalAccuracyPercent    float64 `json:"retrieval_accuracy_percent"`
	RetrievalSuccessPercent     float64 `json:"retrieval_success_percent"`
	ParserConsistencyPercent    float64 `json:"parser_consistency_percent"`
	RetrievalConsistencyPercent float64 `json:"retrieval_consistency_percent"`
	HallucinationLLMOnlyPercent float64 `json:"hallucination_rate_llm_only_percent"`
	HallucinationRAGPercent     float64 `json:"hallucination_rate_rag_percent"`
	AvgCompletenessLLMOnly      float64 `json:"avg_completeness_llm_only"`
	AvgCompletenessRAG          float64 `json:"avg_completeness_rag"`
	AvgParseLatencySeconds      float64 `json:"avg_parse_latency_seconds"`
	AvgRetrieveLatencySeconds   float64 `json:"avg_retrieve_latency_seconds"`
	AvgLLMGenerateLatencySecs   float64 `json:"avg_llm_generate_latency_seconds"`
	AvgRAGGenerateLatencySecs   float64 `json:"avg_rag_generate_latency_seconds"`
}

// Runner drives the evaluation. It calls the parse and retrieve stages
// directly for the repeated consistency runs, and the full pipeline for the
// two answer modes.
type Runner struct {
	cfg       config.EvaluationConfig
	parser    *parsequestion.Handler
	retriever *retrieveplans.Handler
	pipe      *pipeline.Pipeline
	dataset   *models.Dataset
	logger    logger.Logger
}

func NewRunner(
	cfg config.EvaluationConfig,
	parser *parsequestion.Handler,
	retriever *retrieveplans.Handler,
	pipe *pipeline.Pipeline,
	dataset *models.Dataset,
	log logger.Logger,
) *Runner {
	if cfg.ConsistencyRuns < 1 {
		cfg.ConsistencyRuns = 1
	}
	return &Runner{
		cfg:       cfg,
		parser:    parser,
		retriever: retriever,
		pipe:      pipe,
		dataset:   dataset,
		logger:    log.WithFields(map[string]interface{}{"component": "evaluation"}),
	}
}

// Run evaluates every question and writes the per-question results CSV and
// the aggregate summary JSON. Individual stage failures are scored, not
// fatal; only unreadable input files abort the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	questions, err := loadQuestions(r.cfg.QuestionsPath)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions found in %s", r.cfg.QuestionsPath)
	}

	expectedMap, err := loadExpected(r.cfg.ExpectedPath)
	if err != nil {
		return nil, err
	}

	var (
		results []QuestionResult

		correctRetrieval     int
		retrievalSuccess     int
		parserConsistency    int
		retrievalConsistency int
		hallucinationLLMOnly int
		hallucinationRAG     int
		completenessLLMOnly  float64
		completenessRAG      float64

		parseLatencies    []time.Duration
		retrieveLatencies []time.Duration
		llmLatencies      []time.Duration
		ragLatencies      []time.Duration
	)

	for _, question := range questions {
		r.logger.Info("evaluating question", map[string]interface{}{"question": question})

		runs := r.consistencyRuns(ctx, question, &parseLatencies, &retrieveLatencies)
		if allEqual(runs.parseKeys) {
			parserConsistency++
		}
		if allEqual(runs.retrieveKeys) {
			retrievalConsistency++
		}

		retrieved := runs.firstRetrieved
		if len(retrieved) > 0 {
			retrievalSuccess++
		}
		if retrievedMatchesExpected(expectedMap[question], retrieved) {
			correctRetrieval++
		}

		llmAnswer := r.answer(ctx, question, pipeline.ModeLLMOnly, &llmLatencies)
		ragAnswer := r.answer(ctx, question, pipeline.ModeRAG, &ragLatencies)

		if detectHallucination(retrieved, llmAnswer) {
			hallucinationLLMOnly++
		}
		if detectHallucination(retrieved, ragAnswer) {
			hallucinationRAG++
		}
		completenessLLMOnly += completenessFraction(retrieved, llmAnswer)
		completenessRAG += completenessFraction(retrieved, ragAnswer)

		results = append(results, QuestionResult{
			Question:  question,
			Expected:  expectedMap[question],
			Retrieved: retrieved,
			LLMOnly:   llmAnswer,
			RAG:       ragAnswer,
		})
	}

	total := float64(len(questions))
	summary := &Summary{
		TotalQuestions:              len(questions),
		RetrievalAccuracyPercent:    percent(correctRetrieval, total),
		RetrievalSuccessPercent:     percent(retrievalSuccess, total),
		ParserConsistencyPercent:    percent(parserConsistency, total),
		RetrievalConsistencyPercent: percent(retrievalConsistency, total),
		HallucinationLLMOnlyPercent: percent(hallucinationLLMOnly, total),
		HallucinationRAGPercent:     percent(hallucinationRAG, total),
		AvgCompletenessLLMOnly:      round3(completenessLLMOnly / total),
		AvgCompletenessRAG:          round3(completenessRAG / total),
		AvgParseLatencySeconds:      avgSeconds(parseLatencies),
		AvgRetrieveLatencySeconds:   avgSeconds(retrieveLatencies),
		AvgLLMGenerateLatencySecs:   avgSeconds(llmLatencies),
		AvgRAGGenerateLatencySecs:   avgSeconds(ragLatencies),
	}

	if err := r.writeResults(results); err != nil {
		return nil, err
	}
	if err := r.writeSummary(summary); err != nil {
		return nil, err
	}

	return summary, nil
}

type consistencyOutcome struct {
	parseKeys      []string
	retrieveKeys   []string
	firstRetrieved []models.PlanRecord
}

// consistencyRuns repeats parse and retrieve for one question and returns
// serialized run keys for equality checks. A failed parse yields an empty
// key and an empty retrieval for that run.
func (r *Runner) consistencyRuns(ctx context.Context, question string, parseLat, retrieveLat *[]time.Duration) consistencyOutcome {
	outcome := consistencyOutcome{}

	for i := 0; i < r.cfg.ConsistencyRuns; i++ {
		start := time.Now()
		parsed, err := r.parser.Parse(ctx, question)
		*parseLat = append(*parseLat, time.Since(start))

		if err != nil {
			r.logger.WithError(err).Warn("parse failed during consistency run", map[string]interface{}{
				"question":  question,
				"errorCode": commonerrors.CodeOf(err),
			})
			outcome.parseKeys = append(outcome.parseKeys, "")
			outcome.retrieveKeys = append(outcome.retrieveKeys, "")
			continue
		}
		outcome.parseKeys = append(outcome.parseKeys, serializeKey(parsed))

		start = time.Now()
		retrieved := r.retriever.Execute(parsed, r.dataset)
		*retrieveLat = append(*retrieveLat, time.Since(start))
		outcome.retrieveKeys = append(outcome.retrieveKeys, serializeKey(retrieved))

		if i == 0 {
			outcome.firstRetrieved = retrieved.Records
		}
	}
	return outcome
}

// answer runs one pipeline mode, scoring a failed round as an empty answer.
func (r *Runner) answer(ctx context.Context, question string, mode pipeline.Mode, latencies *[]time.Duration) string {
	start := time.Now()

	var (
		result *pipeline.RoundResult
		err    error
	)
	if mode == pipeline.ModeLLMOnly {
		result, err = r.pipe.AnswerDirect(ctx, question)
	} else {
		result, err = r.pipe.AnswerGrounded(ctx, question)
	}
	*latencies = append(*latencies, time.Since(start))

	if err != nil {
		r.logger.WithError(err).Warn("answer round failed", map[string]interface{}{
			"question": question,
			"mode":     mode,
		})
		return ""
	}
	return result.Answer
}

func (r *Runner) writeResults(results []QuestionResult) error {
	if err := os.MkdirAll(filepath.Dir(r.cfg.ResultsPath), 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	f, err := os.Create(r.cfg.ResultsPath)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"question", "expected", "retrieved", "llm_only", "rag"}); err != nil {
		return err
	}
	for _, res := range results {
		expected, _ := json.Marshal(res.Expected)
		retrieved, _ := json.Marshal(res.Retrieved)
		if err := w.Write([]string{res.Question, string(expected), string(retrieved), res.LLMOnly, res.RAG}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (r *Runner) writeSummary(summary *Summary) error {
	if err := os.MkdirAll(filepath.Dir(r.cfg.SummaryPath), 0o755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}

	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.cfg.SummaryPath, b, 0o644)
}

// ==========================
// Input Loading
// ==========================

// loadQuestions reads the question column of the evaluation CSV, accepting
// either a "question" or "Question" header.
func loadQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening questions file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), "question") {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, fmt.Errorf("questions file %s has no question column", path)
	}

	var questions []string
	for _, row := range rows[1:] {
		if col < len(row) {
			if q := strings.TrimSpace(row[col]); q != "" {
				questions = append(questions, q)
			}
		}
	}
	return questions, nil
}

// loadExpected reads the question to expected-records map. A missing file is
// not an error; every question then scores against an empty expectation.
func loadExpected(path string) (map[string][]ExpectedRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]ExpectedRecord{}, nil
		}
		return nil, fmt.Errorf("reading expected file: %w", err)
	}

	var out map[string][]ExpectedRecord
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding expected file: %w", err)
	}
	return out, nil
}

// ==========================
// Small Helpers
// ==========================

func serializeKey(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func allEqual(keys []string) bool {
	for _, k := range keys[1:] {
		if k != keys[0] {
			return false
		}
	}
	return true
}

func percent(n int, total float64) float64 {
	return round2(100 * float64(n) / total)
}

func avgSeconds(durations []time.Duration) float64 {
	if len(durations) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return round4(sum.Seconds() / float64(len(durations)))
}

func round2(v float64) float64 { return roundTo(v, 100) }
func round3(v float64) float64 { return roundTo(v, 1000) }
func round4(v float64) float64 { return roundTo(v, 10000) }

func roundTo(v float64, factor float64) float64 {
	return math.Round(v*factor) / factor
}
