package generateanswer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"grounded-qa/internal/common/llm"
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/models"
)

const Stage = "generate-answer"

// NoMatchAnswer is returned for an empty retrieval result. "No plan fits" is
// an answerable fact, so it is reported as an answer rather than an error,
// and no model call is spent on it.
const NoMatchAnswer = "No matching plan was found for this question."

type Handler struct {
	config *Config
	client llm.Client
	logger logger.Logger
}

func NewHandler(config *Config, client llm.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"stage": Stage}),
	}
}

// GenerateDirect answers from the model's own knowledge, without retrieval.
// The answer may be factually wrong; that is the intended contrast condition.
func (h *Handler) GenerateDirect(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	answer, err := h.client.Generate(ctx, question, llm.Options{
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
	})
	if err != nil {
		return "", err
	}

	h.logger.Info("direct answer generated", map[string]interface{}{
		"durationMs":  time.Since(start).Milliseconds(),
		"answerChars": len(answer),
	})

	return answer, nil
}

// GenerateGrounded answers using only the retrieved facts, embedded verbatim
// in the prompt.
func (h *Handler) GenerateGrounded(ctx context.Context, question string, result models.RetrievalResult) (string, error) {
	if result.Empty() {
		h.logger.Info("no retrieved data, answering without model call", nil)
		return NoMatchAnswer, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	answer, err := h.client.Generate(ctx, buildGroundedPrompt(question, result), llm.Options{
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
	})
	if err != nil {
		return "", err
	}

	h.logger.Info("grounded answer generated", map[string]interface{}{
		"factCount":   len(result.Records),
		"durationMs":  time.Since(start).Milliseconds(),
		"answerChars": len(answer),
	})

	return answer, nil
}

func buildGroundedPrompt(question string, result models.RetrievalResult) string {
	facts, _ := json.MarshalIndent(result.Records, "", "  ")

	var parts []string
	parts = append(parts, fmt.Sprintf("User question: %s", question))
	parts = append(parts, "Use ONLY the following factual data:")
	parts = append(parts, string(facts))
	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Generate a natural-language answer based on this data")
	parts = append(parts, "- Do not add plans, prices, or capabilities that are not listed")
	parts = append(parts, "- If the data does not answer the question, say so clearly")
	parts = append(parts, "- Keep the response concise")

	return strings.Join(parts, "\n")
}
