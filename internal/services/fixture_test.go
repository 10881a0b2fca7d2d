package services

import (
	"context"
	"testing"
	"time"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/store/memory"
)

const (
	tokenU1 = "token-u1"
	tokenU2 = "token-u2"
)

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	recorder *notify.Recorder
	resolver auth.StaticResolver
	now      time.Time
}

func newFixture(t *testing.T, y, m, d int) *fixture {
	t.Helper()
	return &fixture{
		ctx:      context.Background(),
		store:    memory.New(),
		recorder: &notify.Recorder{},
		resolver: auth.StaticResolver{tokenU1: "u1", tokenU2: "u2"},
		now:      time.Date(y, time.Month(m), d, 10, 30, 0, 0, time.UTC),
	}
}

// clock follows f.now so tests can move time between calls.
func (f *fixture) clock() Clock {
	return func() time.Time { return f.now }
}

func (f *fixture) today() core.Date {
	return f.clock().Today()
}

func (f *fixture) monitor(window SpendWindow) *BudgetMonitor {
	return NewBudgetMonitor(f.store, f.recorder, window, f.clock())
}

func (f *fixture) withEmail(t *testing.T, owner, email string) {
	t.Helper()
	if err := f.store.PutProfile(f.ctx, core.UserProfile{OwnerID: owner, Email: email}); err != nil {
		t.Fatalf("put profile: %v", err)
	}
}

func (f *fixture) addExpense(t *testing.T, owner, category string, cents int64, date core.Date) core.Expense {
	t.Helper()
	e, err := f.store.InsertExpense(f.ctx, core.Expense{
		OwnerID:  owner,
		Amount:   core.Money{Cents: cents},
		Category: category,
		Date:     date,
		Method:   "card",
	})
	if err != nil {
		t.Fatalf("insert expense: %v", err)
	}
	return e
}

func (f *fixture) addBudget(t *testing.T, owner, category string, cents int64) core.Budget {
	t.Helper()
	b, err := f.store.InsertBudget(f.ctx, core.Budget{
		OwnerID:   owner,
		Category:  category,
		Amount:    core.Money{Cents: cents},
		Period:    core.Monthly,
		StartDate: core.NewDate(2025, 1, 1),
	})
	if err != nil {
		t.Fatalf("insert budget: %v", err)
	}
	return b
}

func dollars(n int64) core.Money { return core.Money{Cents: n * 100} }
