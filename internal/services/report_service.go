package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

// Weekly insight labels.
const (
	LabelNewSpending = "New spending"
	LabelNoSpending  = "No spending this week"
	LabelNoChange    = "no change"
)

var hundred = decimal.NewFromInt(100)

// ReportService computes read-only views over an owner's expenses.
type ReportService struct {
	expenses store.ExpenseStore
	auth     auth.Resolver
	clock    Clock
}

func NewReportService(expenses store.ExpenseStore, resolver auth.Resolver, clock Clock) *ReportService {
	return &ReportService{expenses: expenses, auth: resolver, clock: clock}
}

// MonthlyReport returns the per-category totals of month ("YYYY-MM"). An
// empty month means the current one.
func (s *ReportService) MonthlyReport(ctx context.Context, token, month string) (core.MonthlyReport, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	if month == "" {
		month = s.clock.Today().MonthKey()
	}
	if _, _, err := core.MonthRange(month); err != nil {
		return core.MonthlyReport{}, err
	}
	expenses, err := s.expenses.ListExpenses(ctx, owner)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("list expenses: %w", err)
	}
	return BuildMonthlyReport(expenses, month)
}

// WeeklyInsight compares this week so far with last week. A zero reference
// means today.
func (s *ReportService) WeeklyInsight(ctx context.Context, token string, reference core.Date) (core.WeeklyInsight, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.WeeklyInsight{}, err
	}
	if reference.IsEmpty() {
		reference = s.clock.Today()
	}
	expenses, err := s.expenses.ListExpenses(ctx, owner)
	if err != nil {
		return core.WeeklyInsight{}, fmt.Errorf("list expenses: %w", err)
	}
	return BuildWeeklyInsight(expenses, reference), nil
}

// BuildMonthlyReport sums expenses dated within month by category. Expenses
// with unreadable dates are skipped and reported as diagnostics.
func BuildMonthlyReport(expenses []core.Expense, month string) (core.MonthlyReport, error) {
	start, end, err := core.MonthRange(month)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	report := core.MonthlyReport{Month: start.MonthKey(), ByCategory: []core.CategoryAmount{}}

	totals := map[string]core.Money{}
	for _, e := range expenses {
		if e.Date.IsEmpty() {
			report.Diagnostics = append(report.Diagnostics, fmt.Sprintf("expense %s: unreadable date skipped", e.ID))
			continue
		}
		if e.Date.Before(start) || e.Date.After(end) {
			continue
		}
		totals[e.Category] = totals[e.Category].Add(e.Amount)
		report.Total = report.Total.Add(e.Amount)
	}

	for _, name := range sortedKeys(totals) {
		report.ByCategory = append(report.ByCategory, core.CategoryAmount{Name: name, Amount: totals[name]})
	}
	return report, nil
}

// BuildWeeklyInsight compares [monday, reference) with the seven days before
// monday. The reference day itself is not part of this week.
func BuildWeeklyInsight(expenses []core.Expense, reference core.Date) core.WeeklyInsight {
	monday := core.WeekStart(reference)
	lastMonday := monday.AddDays(-7)
	out := core.WeeklyInsight{
		WeekStart:     monday,
		LastWeekStart: lastMonday,
		Reference:     reference,
		Insights:      []core.CategoryInsight{},
	}

	current := map[string]core.Money{}
	previous := map[string]core.Money{}
	for _, e := range expenses {
		switch {
		case e.Date.IsEmpty():
			out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("expense %s: unreadable date skipped", e.ID))
		case !e.Date.Before(monday) && e.Date.Before(reference):
			current[e.Category] = current[e.Category].Add(e.Amount)
		case !e.Date.Before(lastMonday) && e.Date.Before(monday):
			previous[e.Category] = previous[e.Category].Add(e.Amount)
		}
	}

	union := map[string]struct{}{}
	for c := range current {
		union[c] = struct{}{}
	}
	for c := range previous {
		union[c] = struct{}{}
	}

	for _, c := range sortedKeys(union) {
		cur, hasCur := current[c]
		prev, hasPrev := previous[c]
		insight := core.CategoryInsight{Category: c, Current: cur, Previous: prev}
		switch {
		case !hasCur && hasPrev:
			insight.Label = LabelNoSpending
		case !hasPrev || prev.Cents == 0:
			insight.Label = LabelNewSpending
		default:
			pct := percentChange(cur, prev)
			f := pct.InexactFloat64()
			insight.Percent = &f
			insight.Label = changeLabel(pct)
		}
		out.Insights = append(out.Insights, insight)
	}
	return out
}

// percentChange is (cur - prev) / prev * 100 rounded to one decimal.
func percentChange(cur, prev core.Money) decimal.Decimal {
	return cur.Decimal().Sub(prev.Decimal()).Div(prev.Decimal()).Mul(hundred).Round(1)
}

func changeLabel(pct decimal.Decimal) string {
	switch pct.Sign() {
	case 1:
		return pct.StringFixed(1) + "% more"
	case -1:
		return pct.Abs().StringFixed(1) + "% less"
	default:
		return LabelNoChange
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
