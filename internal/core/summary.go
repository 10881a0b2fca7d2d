package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"category"`
	Amount Money  `json:"amount"`
}

// MonthlyReport is the per-category spend of one calendar month.
type MonthlyReport struct {
	Month       string           `json:"month"`
	Total       Money            `json:"total"`
	ByCategory  []CategoryAmount `json:"summary"`
	Diagnostics []string         `json:"diagnostics,omitempty"`
}

// Totals returns the report as a category → amount map.
func (r MonthlyReport) Totals() map[string]Money {
	out := make(map[string]Money, len(r.ByCategory))
	for _, c := range r.ByCategory {
		out[c.Name] = c.Amount
	}
	return out
}

// CategoryInsight compares one category across two consecutive weeks.
// Percent is nil when there is no previous spend to compare against.
type CategoryInsight struct {
	Category string   `json:"category"`
	Current  Money    `json:"current"`
	Previous Money    `json:"previous"`
	Percent  *float64 `json:"percent,omitempty"`
	Label    string   `json:"label"`
}

// WeeklyInsight is the week-over-week view anchored on a reference day.
type WeeklyInsight struct {
	WeekStart     Date              `json:"week_start"`
	LastWeekStart Date              `json:"last_week_start"`
	Reference     Date              `json:"reference"`
	Insights      []CategoryInsight `json:"insights"`
	Diagnostics   []string          `json:"diagnostics,omitempty"`
}

// Suggestions is the output of the spend-anomaly check.
type Suggestions struct {
	Suggestions []string `json:"suggestions"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}
