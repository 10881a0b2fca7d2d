package services

import (
	"context"
	"fmt"
	"log/slog"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

// SweepResult summarizes one pass of a periodic processor.
type SweepResult struct {
	Checked      int      `json:"checked"`
	Materialized int      `json:"materialized,omitempty"`
	Sent         int      `json:"sent,omitempty"`
	Expired      int      `json:"expired"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	Diagnostics  []string `json:"diagnostics,omitempty"`
}

func (r *SweepResult) diag(format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, fmt.Sprintf(format, args...))
}

// RecurringProcessor turns due recurring rules into expenses. A sweep is
// safe to repeat and to run concurrently: each occurrence is claimed with a
// compare-and-swap on the rule's next due date before the expense is
// written.
type RecurringProcessor struct {
	rules    store.RuleStore
	expenses store.ExpenseStore
	monitor  *BudgetMonitor
}

// NewRecurringProcessor creates a processor. monitor may be nil.
func NewRecurringProcessor(rules store.RuleStore, expenses store.ExpenseStore, monitor *BudgetMonitor) *RecurringProcessor {
	return &RecurringProcessor{rules: rules, expenses: expenses, monitor: monitor}
}

// ProcessDueRules materializes at most one expense per due rule, dated today.
// Missed occurrences are not back-filled.
func (p *RecurringProcessor) ProcessDueRules(ctx context.Context, today core.Date) (SweepResult, error) {
	var res SweepResult

	due, err := p.rules.ListDueRules(ctx, today)
	if err != nil {
		return res, fmt.Errorf("list due rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"due", len(due),
		"processing_date", today.String())

	for _, r := range due {
		res.Checked++
		p.processRule(ctx, today, r, &res)
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"checked", res.Checked,
		"materialized", res.Materialized,
		"expired", res.Expired,
		"skipped", res.Skipped,
		"failed", res.Failed)

	return res, nil
}

func (p *RecurringProcessor) processRule(ctx context.Context, today core.Date, r core.RecurringRule, res *SweepResult) {
	if r.NextDueDate.IsEmpty() || r.StartDate.IsEmpty() {
		res.Failed++
		res.diag("rule %s: unreadable schedule dates", r.ID)
		return
	}
	if r.LastMaterialized.Equal(today) {
		res.Skipped++
		return
	}

	if !r.EndDate.IsEmpty() && r.NextDueDate.After(r.EndDate) {
		claim := r
		claim.Status = core.StatusExpired
		ok, err := p.rules.AdvanceRule(ctx, r, claim)
		switch {
		case err != nil:
			res.Failed++
			res.diag("rule %s: expire: %v", r.ID, err)
		case ok:
			res.Expired++
			slog.InfoContext(ctx, "Recurring rule expired", "rule_id", r.ID, "end_date", r.EndDate.String())
		default:
			res.Skipped++
		}
		return
	}

	next, err := nextAfter(r.Frequency, r.NextDueDate, r.StartDate, today)
	if err != nil {
		res.Failed++
		res.diag("rule %s: %v", r.ID, err)
		return
	}

	claim := r
	claim.LastMaterialized = today
	claim.NextDueDate = next
	if !r.EndDate.IsEmpty() && next.After(r.EndDate) {
		claim.Status = core.StatusExpired
	}

	ok, err := p.rules.AdvanceRule(ctx, r, claim)
	if err != nil {
		res.Failed++
		res.diag("rule %s: claim: %v", r.ID, err)
		return
	}
	if !ok {
		// Another sweep got there first.
		res.Skipped++
		return
	}

	expense := core.Expense{
		OwnerID:  r.OwnerID,
		Amount:   r.Amount,
		Category: r.Category,
		Date:     today,
		Method:   r.Method,
		Notes:    core.RecurringNotePrefix + r.Notes,
	}
	stored, err := p.expenses.InsertExpense(ctx, expense)
	if err != nil {
		res.Failed++
		res.diag("rule %s: materialize: %v", r.ID, err)
		slog.ErrorContext(ctx, "Failed to create expense from recurring rule", "rule_id", r.ID, "error", err)
		if _, rerr := p.rules.AdvanceRule(ctx, claim, r); rerr != nil {
			res.diag("rule %s: revert claim: %v", r.ID, rerr)
		}
		return
	}

	res.Materialized++
	if claim.Status == core.StatusExpired {
		res.Expired++
	}
	slog.InfoContext(ctx, "Created expense from recurring rule",
		"rule_id", r.ID,
		"expense_id", stored.ID,
		"amount_cents", r.Amount.Cents,
		"frequency", r.Frequency,
		"next_due", next.String())

	if p.monitor != nil {
		outcome := p.monitor.Check(ctx, stored)
		res.Diagnostics = append(res.Diagnostics, outcome.Diagnostics...)
	}
}
