// internal/stages/parse-question/models.go
package parsequestion

// rawParse is the wire shape the model is instructed to emit. Pointer fields
// distinguish "absent" from zero values before mapping onto models.ParsedQuery.
type rawParse struct {
	Platform *string    `json:"platform"`
	Intent   string     `json:"intent"`
	Budget   *rawBudget `json:"budget"`
	Features []string   `json:"features"`
}

type rawBudget struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}
