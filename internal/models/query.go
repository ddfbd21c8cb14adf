// internal/models/query.go
package models

// Intent classifies what a question is asking for.
type Intent string

const (
	IntentCheapest     Intent = "cheapest"
	IntentLargest      Intent = "largest"
	IntentBudgetRange  Intent = "budget_range"
	IntentFeatureMatch Intent = "feature_match"
	IntentUnknown      Intent = "unknown"
)

// ParseIntent maps a raw intent keyword to an Intent; anything unrecognized
// maps to IntentUnknown rather than failing, so retrieval can still attempt a
// best-effort match.
func ParseIntent(raw string) Intent {
	switch Intent(raw) {
	case IntentCheapest, IntentLargest, IntentBudgetRange, IntentFeatureMatch:
		return Intent(raw)
	}
	return IntentUnknown
}

// BudgetRange is an inclusive price range in dollars.
type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ParsedQuery is the structured form of a free-text question. Produced fresh
// per question; never persisted.
type ParsedQuery struct {
	Platform         string       `json:"platform,omitempty"`
	Intent           Intent       `json:"intent"`
	Budget           *BudgetRange `json:"budget,omitempty"`
	RequiredFeatures []string     `json:"requiredFeatures,omitempty"`
}

// RetrievalResult holds zero, one, or many plans matching a ParsedQuery.
// Empty is the valid NoMatch outcome, not an error.
type RetrievalResult struct {
	Records []PlanRecord `json:"records"`
}

// Empty reports the NoMatch outcome.
func (r RetrievalResult) Empty() bool {
	return len(r.Records) == 0
}
