package retrieveplans

import (
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/models"
)

const Stage = "retrieve-plans"

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"stage": Stage}),
	}
}

// Execute filters the dataset by the parsed query. Pure and deterministic:
// the same query and dataset always yield the same result, and an empty
// result is the valid NoMatch outcome rather than an error.
func (h *Handler) Execute(query *models.ParsedQuery, ds *models.Dataset) models.RetrievalResult {
	result := retrieve(query, ds)

	h.logger.Info("retrieval completed", map[string]interface{}{
		"platform":    query.Platform,
		"intent":      query.Intent,
		"resultCount": len(result.Records),
	})

	return result
}

func retrieve(query *models.ParsedQuery, ds *models.Dataset) models.RetrievalResult {
	candidates := filterByPlatform(ds.Records, query.Platform)

	switch query.Intent {
	case models.IntentCheapest:
		return pickExtreme(candidates, func(a, b models.PlanRecord) bool {
			return a.Price < b.Price
		})

	case models.IntentLargest:
		return pickExtreme(candidates, func(a, b models.PlanRecord) bool {
			return a.StorageGB > b.StorageGB
		})

	case models.IntentBudgetRange:
		if query.Budget == nil {
			return models.RetrievalResult{}
		}
		var matched []models.PlanRecord
		for _, r := range candidates {
			// Inclusive bounds; an inverted range matches nothing.
			if r.Price >= query.Budget.Min && r.Price <= query.Budget.Max {
				matched = append(matched, r)
			}
		}
		return models.RetrievalResult{Records: matched}

	case models.IntentFeatureMatch:
		var matched []models.PlanRecord
		for _, r := range candidates {
			if r.HasFeatures(query.RequiredFeatures) {
				matched = append(matched, r)
			}
		}
		return models.RetrievalResult{Records: matched}
	}

	// Unknown intent: no best-effort guessing, the empty result is reported
	// downstream as "no matching data".
	return models.RetrievalResult{}
}

func filterByPlatform(records []models.PlanRecord, platform string) []models.PlanRecord {
	if platform == "" {
		return records
	}
	var out []models.PlanRecord
	for _, r := range records {
		if r.Platform == platform {
			out = append(out, r)
		}
	}
	return out
}

// pickExtreme returns the single record winning the strict comparison,
// keeping the earliest record in dataset order on ties.
func pickExtreme(records []models.PlanRecord, better func(a, b models.PlanRecord) bool) models.RetrievalResult {
	if len(records) == 0 {
		return models.RetrievalResult{}
	}
	best := records[0]
	for _, r := range records[1:] {
		if better(r, best) {
			best = r
		}
	}
	return models.RetrievalResult{Records: []models.PlanRecord{best}}
}
