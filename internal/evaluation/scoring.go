// Package evaluation runs the batch comparison of the direct and grounded
// answer paths over a fixed question set and scores retrieval accuracy,
// consistency, hallucination rate, and answer completeness.
package evaluation

import (
	"encoding/json"
	"regexp"
	"strings"

	"grounded-qa/internal/models"
)

// ExpectedRecord is one expected retrieval outcome for a question. Keys are
// plan fields, values are substrings the retrieved field must contain after
// normalization.
type ExpectedRecord map[string]interface{}

var (
	dollarPattern   = regexp.MustCompile(`\$\s*\d+(\.\d+)?`)
	quantityPattern = regexp.MustCompile(`\d+(\.\d+)?\s*(tb|gb)`)
	numberPattern   = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	wordPattern     = regexp.MustCompile(`\b[a-z0-9\-_]{3,}\b`)
)

// genericTokens are answer words too common to count as factual claims.
var genericTokens = map[string]bool{
	"plan":    true,
	"monthly": true,
	"price":   true,
}

func normalizeValue(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(strings.Trim(string(b), `"`)))
}

func normalizeRecord(obj map[string]interface{}) map[string]string {
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[strings.ToLower(k)] = normalizeValue(v)
	}
	return out
}

// recordToMap flattens a plan into its JSON field representation so expected
// records and retrieved records compare on the same keys.
func recordToMap(r models.PlanRecord) map[string]interface{} {
	b, _ := json.Marshal(r)
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	return m
}

// retrievedMatchesExpected reports whether every expected record is covered by
// some retrieved record. A match means each non-empty expected value is a
// substring of the retrieved value under the same key. Two empty sides match.
func retrievedMatchesExpected(expected []ExpectedRecord, retrieved []models.PlanRecord) bool {
	if len(expected) == 0 {
		return len(retrieved) == 0
	}
	if len(retrieved) == 0 {
		return false
	}

	normRetrieved := make([]map[string]string, 0, len(retrieved))
	for _, r := range retrieved {
		normRetrieved = append(normRetrieved, normalizeRecord(recordToMap(r)))
	}

	for _, exp := range expected {
		normExp := normalizeRecord(exp)
		matched := false
		for _, ret := range normRetrieved {
			ok := true
			for k, v := range normExp {
				if v != "" && !strings.Contains(ret[k], v) {
					ok = false
					break
				}
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// extractFactualTokens pulls the checkable claims out of an answer: dollar
// amounts, storage quantities, bare numbers, and identifier-like words.
func extractFactualTokens(answer string) []string {
	text := strings.ToLower(answer)
	seen := make(map[string]bool)
	var tokens []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t != "" && !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}

	// Dollar amounts are kept without the sign so they compare against the
	// bare numeric field values of the records.
	for _, m := range dollarPattern.FindAllString(text, -1) {
		add(strings.TrimSpace(strings.TrimPrefix(m, "$")))
	}
	for _, m := range quantityPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range numberPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range wordPattern.FindAllString(text, -1) {
		add(m)
	}
	return tokens
}

// retrievedTokenSet collects the normalized field values of the retrieved
// records, the vocabulary an answer is allowed to make claims from.
func retrievedTokenSet(retrieved []models.PlanRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range retrieved {
		for _, v := range normalizeRecord(recordToMap(r)) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// detectHallucination reports whether the answer makes a factual claim not
// backed by the retrieved records. With nothing retrieved, any factual claim
// is a hallucination unless the answer admits there is no match.
func detectHallucination(retrieved []models.PlanRecord, answer string) bool {
	if len(retrieved) == 0 {
		low := strings.ToLower(answer)
		if strings.TrimSpace(low) == "" ||
			strings.Contains(low, "no matching") ||
			strings.Contains(low, "not found") {
			return false
		}
		return len(extractFactualTokens(answer)) > 0
	}

	factual := extractFactualTokens(answer)
	if len(factual) == 0 {
		return false
	}

	vocabulary := retrievedTokenSet(retrieved)
	for _, t := range factual {
		if genericTokens[t] {
			continue
		}
		matched := false
		for _, v := range vocabulary {
			if strings.Contains(v, t) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
	}
	return false
}

// completenessFraction scores how many retrieved field values the answer
// mentions. An empty retrieval has nothing to cover and scores 1.
func completenessFraction(retrieved []models.PlanRecord, answer string) float64 {
	if len(retrieved) == 0 {
		return 1.0
	}

	ans := strings.ToLower(answer)
	total := 0
	matched := 0
	for _, r := range retrieved {
		for _, v := range normalizeRecord(recordToMap(r)) {
			total++
			if strings.Contains(ans, v) {
				matched++
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(matched) / float64(total)
}
