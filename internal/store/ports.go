// Package store declares the document-store ports the rule engine depends on.
//
// Implementations return core.ErrNotFound (possibly wrapped) when a record
// does not exist. Ownership checks are the caller's job: stores look records
// up by id only.
package store

import (
	"context"

	"budgetbuddy/internal/core"
)

// Ports for outbound adapters.
type (
	ExpenseStore interface {
		InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		// InsertExpenses stores a batch and returns the records with their ids.
		InsertExpenses(ctx context.Context, es []core.Expense) ([]core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id string) error
	}

	BudgetStore interface {
		InsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, id string) (core.Budget, error)
		ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, id string) error
	}

	RuleStore interface {
		InsertRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
		GetRule(ctx context.Context, id string) (core.RecurringRule, error)
		ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error)
		// ListDueRules returns active rules of every owner whose next due
		// date is on or before day.
		ListDueRules(ctx context.Context, day core.Date) ([]core.RecurringRule, error)
		// UpdateRule writes the user-editable fields of r (amount, category,
		// method, notes, end date). Status and schedule fields are left alone.
		UpdateRule(ctx context.Context, r core.RecurringRule) error
		// AdvanceRule writes the scheduling fields of next (next due date,
		// last materialized date, status) only if the stored next due date
		// and status still equal those of expected. It reports whether the
		// swap happened.
		AdvanceRule(ctx context.Context, expected, next core.RecurringRule) (bool, error)
		DeleteRule(ctx context.Context, id string) error
	}

	ReminderStore interface {
		InsertReminder(ctx context.Context, r core.Reminder) (core.Reminder, error)
		GetReminder(ctx context.Context, id string) (core.Reminder, error)
		ListReminders(ctx context.Context, ownerID string) ([]core.Reminder, error)
		// ListActiveReminders returns active reminders of every owner.
		ListActiveReminders(ctx context.Context) ([]core.Reminder, error)
		// UpdateReminder writes everything but LastSent.
		UpdateReminder(ctx context.Context, r core.Reminder) error
		// ClaimReminder sets LastSent to sentOn only if it still equals
		// expected. It reports whether the swap happened.
		ClaimReminder(ctx context.Context, id string, expected, sentOn core.Date) (bool, error)
		DeleteReminder(ctx context.Context, id string) error
	}

	ProfileStore interface {
		GetProfile(ctx context.Context, ownerID string) (core.UserProfile, error)
		PutProfile(ctx context.Context, p core.UserProfile) error
		GetPreferences(ctx context.Context, ownerID string) (core.NotificationPreferences, error)
		PutPreferences(ctx context.Context, p core.NotificationPreferences) error
	}

	// Store is the whole document store.
	Store interface {
		ExpenseStore
		BudgetStore
		RuleStore
		ReminderStore
		ProfileStore
		Close() error
	}
)
