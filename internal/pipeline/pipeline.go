// Package pipeline sequences the question-answering stages and records
// per-stage outcomes. Two modes exist side by side for comparison: a direct
// model answer, and a grounded answer produced by parse, retrieve, generate.
// Neither mode falls back to the other on failure.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	commonerrors "grounded-qa/internal/common/errors"
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/common/metrics"
	"grounded-qa/internal/common/observability"
	"grounded-qa/internal/models"
	generateanswer "grounded-qa/internal/stages/generate-answer"
	parsequestion "grounded-qa/internal/stages/parse-question"
	retrieveplans "grounded-qa/internal/stages/retrieve-plans"
)

// Mode distinguishes the two answer strategies.
type Mode string

const (
	ModeLLMOnly Mode = "llm_only"
	ModeRAG     Mode = "rag"
)

// RoundResult is everything produced while answering one question, including
// the intermediate artifacts of the grounded path.
type RoundResult struct {
	RoundID   string                   `json:"roundId"`
	Mode      Mode                     `json:"mode"`
	Question  string                   `json:"question"`
	Parsed    *models.ParsedQuery      `json:"parsed,omitempty"`
	Retrieval *models.RetrievalResult  `json:"retrieval,omitempty"`
	Answer    string                   `json:"answer"`
	Durations map[string]time.Duration `json:"durations"`
}

type Pipeline struct {
	parser    *parsequestion.Handler
	retriever *retrieveplans.Handler
	generator *generateanswer.Handler
	dataset   *models.Dataset
	obs       *observability.Observability
	logger    logger.Logger
}

func New(
	parser *parsequestion.Handler,
	retriever *retrieveplans.Handler,
	generator *generateanswer.Handler,
	dataset *models.Dataset,
	obs *observability.Observability,
	log logger.Logger,
) *Pipeline {
	return &Pipeline{
		parser:    parser,
		retriever: retriever,
		generator: generator,
		dataset:   dataset,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// AnswerDirect runs the single-stage direct path.
func (p *Pipeline) AnswerDirect(ctx context.Context, question string) (*RoundResult, error) {
	result := newRound(ModeLLMOnly, question)

	answer, err := p.timed(ctx, result, generateanswer.Stage, func() (string, error) {
		return p.generator.GenerateDirect(ctx, question)
	})
	if err != nil {
		p.finishRound(ctx, result, err)
		return nil, err
	}

	result.Answer = answer
	p.finishRound(ctx, result, nil)
	return result, nil
}

// AnswerGrounded runs parse, retrieve, generate in order. The first failing
// stage aborts the round; an empty retrieval is not a failure and produces a
// fixed no-match answer.
func (p *Pipeline) AnswerGrounded(ctx context.Context, question string) (*RoundResult, error) {
	result := newRound(ModeRAG, question)

	parsed, err := p.timedParse(ctx, result, question)
	if err != nil {
		p.finishRound(ctx, result, err)
		return nil, err
	}
	result.Parsed = parsed

	retrieval := p.timedRetrieve(ctx, result, parsed)
	result.Retrieval = &retrieval
	if retrieval.Empty() {
		metrics.RetrievalEmpty.Inc()
	}

	answer, err := p.timed(ctx, result, generateanswer.Stage, func() (string, error) {
		return p.generator.GenerateGrounded(ctx, question, retrieval)
	})
	if err != nil {
		p.finishRound(ctx, result, err)
		return nil, err
	}

	result.Answer = answer
	p.finishRound(ctx, result, nil)
	return result, nil
}

func newRound(mode Mode, question string) *RoundResult {
	return &RoundResult{
		RoundID:   uuid.New().String(),
		Mode:      mode,
		Question:  question,
		Durations: make(map[string]time.Duration),
	}
}

func (p *Pipeline) timedParse(ctx context.Context, result *RoundResult, question string) (*models.ParsedQuery, error) {
	start := time.Now()
	parsed, err := p.parser.Parse(ctx, question)
	p.recordStage(ctx, result, parsequestion.Stage, time.Since(start), err)
	return parsed, err
}

func (p *Pipeline) timedRetrieve(ctx context.Context, result *RoundResult, parsed *models.ParsedQuery) models.RetrievalResult {
	start := time.Now()
	retrieval := p.retriever.Execute(parsed, p.dataset)
	p.recordStage(ctx, result, retrieveplans.Stage, time.Since(start), nil)
	return retrieval
}

func (p *Pipeline) timed(ctx context.Context, result *RoundResult, stage string, fn func() (string, error)) (string, error) {
	start := time.Now()
	out, err := fn()
	p.recordStage(ctx, result, stage, time.Since(start), err)
	return out, err
}

func (p *Pipeline) recordStage(ctx context.Context, result *RoundResult, stage string, d time.Duration, err error) {
	result.Durations[stage] = d
	mode := string(result.Mode)

	metrics.StageDuration.WithLabelValues(stage, mode).Observe(d.Seconds())
	if p.obs != nil {
		p.obs.RecordStageDuration(ctx, stage, d)
	}

	if err != nil {
		metrics.StageFailed.WithLabelValues(stage, mode, string(commonerrors.CodeOf(err))).Inc()
		return
	}
	metrics.StageCompleted.WithLabelValues(stage, mode).Inc()
}

func (p *Pipeline) finishRound(ctx context.Context, result *RoundResult, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if p.obs != nil {
		p.obs.RecordRoundProcessed(ctx, string(result.Mode), status)
	}

	if err != nil {
		p.logger.WithError(err).Error("round failed", map[string]interface{}{
			"roundId": result.RoundID,
			"mode":    result.Mode,
		})
		return
	}
	p.logger.Info("round completed", map[string]interface{}{
		"roundId": result.RoundID,
		"mode":    result.Mode,
	})
}
