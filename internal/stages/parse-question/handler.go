package parsequestion

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	commonerrors "grounded-qa/internal/common/errors"
	"grounded-qa/internal/common/llm"
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/models"
)

const Stage = "parse-question"

// knownPlatforms is the whitelist the model is told about; anything else in
// its output maps to an absent platform rather than an error.
var knownPlatforms = map[string]string{
	"google drive": "Google Drive",
	"googledrive":  "Google Drive",
	"dropbox":      "Dropbox",
	"onedrive":     "OneDrive",
	"box":          "Box",
}

const systemPrompt = `You are a semantic parser for a cloud storage QA system.
Your output MUST ALWAYS be a single JSON object with this schema:
{
  "platform": string|null,
  "intent": "cheapest"|"largest"|"budget_range"|"feature_match"|"unknown",
  "budget": {"min": number|null, "max": number|null}|null,
  "features": [string]|null
}

=== PLATFORM EXTRACTION RULES ===
- Platforms: ["Google Drive","Dropbox","OneDrive","Box"].
- Only set platform when the user clearly mentions it.
- If the user does NOT specify, return null. DO NOT guess.

=== INTENT EXTRACTION RULES ===
- "cheapest", "lowest price", "most affordable" -> intent = "cheapest".
- "largest", "most storage", "biggest plan" -> intent = "largest".
- A price constraint like "under 10 dollars", "budget of 20", "between 5 and 15" -> intent = "budget_range".
- A capability request like "with encryption", "supports PDF preview" -> intent = "feature_match".
- Anything else -> intent = "unknown".

=== BUDGET EXTRACTION RULES ===
- "under 10", "below 10", "<10", "not exceeding 10", "within 10 dollars" -> budget.max = 10.
- "over 10", ">10", "greater than 10" -> budget.min = 10.
- "between 5 and 15" -> budget.min = 5, budget.max = 15.
- If no price constraint is mentioned -> budget = null.

=== FEATURE EXTRACTION RULES ===
- Extract feature keywords as lowercase snake_case tokens, e.g. "encryption", "offline_access", "video_upload_4k".
- If the user does NOT request a capability -> features = null.

=== IMPORTANT RULES ===
- You MUST always return the "intent" field.
- Any field not mentioned MUST be null.
- NO extra text. Output pure JSON only.
- DO NOT invent details.`

// parseSchema rejects outputs that are not the exact object shape above.
// Decoding never silently defaults: malformed structure is a PARSE_ERROR.
const parseSchema = `{
  "type": "object",
  "properties": {
    "platform": {"type": ["string", "null"]},
    "intent": {"type": "string"},
    "budget": {
      "type": ["object", "null"],
      "properties": {
        "min": {"type": ["number", "null"]},
        "max": {"type": ["number", "null"]}
      },
      "additionalProperties": false
    },
    "features": {
      "type": ["array", "null"],
      "items": {"type": "string"}
    }
  },
  "required": ["intent"],
  "additionalProperties": false
}`

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

// Parse converts a free-text question into a structured query via one model
// round trip followed by deterministic decoding.
func (h *Handler) Parse(ctx context.Context, question string) (*models.ParsedQuery, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := h.client.Generate(ctx, question, llm.Options{
		SystemPrompt: systemPrompt,
		MaxTokens:    h.config.MaxTokens,
		Temperature:  h.config.Temperature,
	})
	if err != nil {
		return nil, err
	}

	query, err := decodeParsedQuery(raw)
	if err != nil {
		h.logger.Error("parser output rejected", map[string]interface{}{
			"rawOutput": raw,
			"error":     err.Error(),
		})
		return nil, err
	}

	h.logger.Info("question parsed", map[string]interface{}{
		"platform":   query.Platform,
		"intent":     query.Intent,
		"hasBudget":  query.Budget != nil,
		"features":   query.RequiredFeatures,
		"durationMs": time.Since(start).Milliseconds(),
	})

	return query, nil
}

// decodeParsedQuery validates the model's raw text against the parse schema
// and maps it onto a ParsedQuery. Unknown platform or intent keywords become
// absent/Unknown fields; structural violations are PARSE_ERROR.
func decodeParsedQuery(raw string) (*models.ParsedQuery, error) {
	trimmed := stripCodeFence(raw)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(parseSchema),
		gojsonschema.NewStringLoader(trimmed),
	)
	if err != nil {
		return nil, commonerrors.NewParseError("output is not valid JSON: " + err.Error())
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return nil, commonerrors.NewParseError("output violates parse schema: " + strings.Join(messages, "; "))
	}

	var parsed rawParse
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, commonerrors.NewParseError("output could not be decoded: " + err.Error())
	}

	query := &models.ParsedQuery{
		Intent: models.ParseIntent(strings.ToLower(strings.TrimSpace(parsed.Intent))),
	}

	if parsed.Platform != nil {
		if canonical, ok := knownPlatforms[strings.ToLower(strings.TrimSpace(*parsed.Platform))]; ok {
			query.Platform = canonical
		}
	}

	if parsed.Budget != nil && (parsed.Budget.Min != nil || parsed.Budget.Max != nil) {
		budget := &models.BudgetRange{Min: 0, Max: maxBudget}
		if parsed.Budget.Min != nil {
			budget.Min = *parsed.Budget.Min
		}
		if parsed.Budget.Max != nil {
			budget.Max = *parsed.Budget.Max
		}
		query.Budget = budget
	}

	for _, f := range parsed.Features {
		f = strings.TrimSpace(f)
		if f != "" {
			query.RequiredFeatures = append(query.RequiredFeatures, f)
		}
	}

	return query, nil
}

// maxBudget caps an open-ended budget range.
const maxBudget = 10000000

// stripCodeFence tolerates models that wrap the JSON object in a markdown
// code fence despite the pure-JSON instruction.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}
