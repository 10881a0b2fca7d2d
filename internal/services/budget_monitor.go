package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/store"
)

// SpendWindow selects which expenses count against a budget.
type SpendWindow string

const (
	// WindowAll counts every expense of the category ever recorded.
	WindowAll SpendWindow = "all"
	// WindowPeriod counts only the budget period containing the new expense.
	WindowPeriod SpendWindow = "period"
)

// ParseSpendWindow maps a config value to a window, defaulting to WindowAll.
func ParseSpendWindow(s string) (SpendWindow, error) {
	switch SpendWindow(strings.ToLower(strings.TrimSpace(s))) {
	case "", WindowAll:
		return WindowAll, nil
	case WindowPeriod:
		return WindowPeriod, nil
	default:
		return "", core.Validationf("unknown budget window %q", s)
	}
}

// AlertOutcome reports what a budget check did. It is informational only:
// a failed check never fails the expense write that triggered it.
type AlertOutcome struct {
	Alerted     bool         `json:"alerted"`
	Budget      *core.Budget `json:"budget,omitempty"`
	Spent       core.Money   `json:"spent"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}

func (o *AlertOutcome) diag(format string, args ...any) {
	o.Diagnostics = append(o.Diagnostics, fmt.Sprintf(format, args...))
}

// BudgetMonitor compares an owner's spend with their budgets after each
// expense and emails the owner when a budget is exceeded.
type BudgetMonitor struct {
	expenses   store.ExpenseStore
	budgets    store.BudgetStore
	profiles   store.ProfileStore
	dispatcher notify.Dispatcher
	window     SpendWindow
	clock      Clock
}

func NewBudgetMonitor(st store.Store, dispatcher notify.Dispatcher, window SpendWindow, clock Clock) *BudgetMonitor {
	if window == "" {
		window = WindowAll
	}
	return &BudgetMonitor{
		expenses:   st,
		budgets:    st,
		profiles:   st,
		dispatcher: dispatcher,
		window:     window,
		clock:      clock,
	}
}

// Check runs after e has been stored. Budgets are scanned in store order;
// the first active budget for e's category (or "overall") whose spend is
// over its amount gets one alert and the scan stops.
func (m *BudgetMonitor) Check(ctx context.Context, e core.Expense) AlertOutcome {
	var out AlertOutcome
	today := m.clock.Today()

	budgets, err := m.budgets.ListBudgets(ctx, e.OwnerID)
	if err != nil {
		slog.ErrorContext(ctx, "Budget check skipped", "owner_id", e.OwnerID, "error", err)
		out.diag("list budgets: %v", err)
		return out
	}

	var candidates []core.Budget
	for _, b := range budgets {
		if b.IsActiveOn(today) && b.Matches(e.Category) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return out
	}

	expenses, err := m.expenses.ListExpenses(ctx, e.OwnerID)
	if err != nil {
		slog.ErrorContext(ctx, "Budget check skipped", "owner_id", e.OwnerID, "error", err)
		out.diag("list expenses: %v", err)
		return out
	}

	for _, b := range candidates {
		spent, err := m.spent(expenses, e, b)
		if err != nil {
			out.diag("budget %s: %v", b.ID, err)
			continue
		}
		if spent.Cents <= b.Amount.Cents {
			continue
		}

		b := b
		out.Budget, out.Spent = &b, spent
		m.alert(ctx, &out, e.OwnerID, spent, b.Amount)
		return out
	}
	return out
}

// spent sums the owner's spend in e's category within the configured window.
func (m *BudgetMonitor) spent(expenses []core.Expense, e core.Expense, b core.Budget) (core.Money, error) {
	var from, to core.Date
	if m.window == WindowPeriod {
		var err error
		from, to, err = PeriodContaining(b.Period, b.StartDate, e.Date)
		if err != nil {
			return core.Money{}, err
		}
	}

	var total core.Money
	for _, x := range expenses {
		if x.Category != e.Category {
			continue
		}
		if m.window == WindowPeriod {
			if x.Date.IsEmpty() || x.Date.Before(from) || x.Date.After(to) {
				continue
			}
		}
		total = total.Add(x.Amount)
	}
	return total, nil
}

func (m *BudgetMonitor) alert(ctx context.Context, out *AlertOutcome, ownerID string, spent, limit core.Money) {
	profile, err := m.profiles.GetProfile(ctx, ownerID)
	if err != nil || strings.TrimSpace(profile.Email) == "" {
		slog.WarnContext(ctx, "Budget exceeded but no email on file", "owner_id", ownerID, "error", err)
		out.diag("no email on file for owner %s", ownerID)
		return
	}

	msg := notify.BudgetAlert(ownerID, profile.Email, spent, limit)
	if err := m.dispatcher.Dispatch(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Budget alert dispatch failed", "owner_id", ownerID, "error", err)
		out.diag("dispatch alert: %v", err)
		return
	}

	out.Alerted = true
	slog.InfoContext(ctx, "Budget alert sent",
		"owner_id", ownerID,
		"budget_id", out.Budget.ID,
		"spent_cents", spent.Cents,
		"limit_cents", limit.Cents)
}
