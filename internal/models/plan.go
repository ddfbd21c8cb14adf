// internal/models/plan.go
package models

// BillingPeriod is the billing cycle of a pricing option.
type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "Monthly"
	BillingAnnual  BillingPeriod = "Annual"
)

// PlanRecord is one cloud-storage pricing plan. Records are immutable once
// loaded; identity is Platform+PlanName.
type PlanRecord struct {
	Platform      string        `json:"Platform"`
	PlanName      string        `json:"PlanName"`
	Price         float64       `json:"Price"`
	BillingPeriod BillingPeriod `json:"BillingPeriod"`
	StorageGB     float64       `json:"StorageGB"`
	Features      []string      `json:"Features"`
}

// HasFeatures reports whether the plan's feature set is a superset of required.
func (p PlanRecord) HasFeatures(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(p.Features))
	for _, f := range p.Features {
		have[f] = true
	}
	for _, f := range required {
		if !have[f] {
			return false
		}
	}
	return true
}

// Dataset is the ordered, read-only collection of plans loaded at startup.
type Dataset struct {
	Records []PlanRecord
}

// Platforms returns the distinct platform names in dataset order.
func (d *Dataset) Platforms() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.Records {
		if !seen[r.Platform] {
			seen[r.Platform] = true
			out = append(out, r.Platform)
		}
	}
	return out
}
