package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbuddy/internal/core"
)

func newExpenseService(f *fixture) *ExpenseService {
	return NewExpenseService(f.store, f.resolver, NewClassifierByName("keyword"), f.monitor(WindowAll), f.clock())
}

func strPtr(s string) *string { return &s }

func TestCreateExpenseClassifiesAndDefaultsDate(t *testing.T) {
	f := newFixture(t, 2025, 5, 15)
	svc := newExpenseService(f)

	e, out, err := svc.CreateExpense(f.ctx, tokenU1, NewExpense{
		Amount: dollars(12),
		Method: "card",
		Notes:  "Uber to the office",
	})
	require.NoError(t, err)
	assert.False(t, out.Alerted)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "u1", e.OwnerID)
	assert.Equal(t, "Transport", e.Category)
	assert.True(t, e.Date.Equal(core.NewDate(2025, 5, 15)))

	e, _, err = svc.CreateExpense(f.ctx, tokenU1, NewExpense{
		Amount:   dollars(3),
		Category: "Gifts",
		Method:   "cash",
		Notes:    "uber gift card",
		Date:     core.NewDate(2025, 5, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Gifts", e.Category)
}

func TestCreateExpenseRejectsBadInput(t *testing.T) {
	f := newFixture(t, 2025, 5, 15)
	svc := newExpenseService(f)

	_, _, err := svc.CreateExpense(f.ctx, tokenU1, NewExpense{Amount: dollars(1), Notes: "rent"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, _, err = svc.CreateExpense(f.ctx, "bogus", NewExpense{Amount: dollars(1), Method: "card"})
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	list, err := f.store.ListExpenses(f.ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateExpenseRunsBudgetCheck(t *testing.T) {
	f := newFixture(t, 2025, 5, 15)
	f.withEmail(t, "u1", "u1@example.com")
	f.addBudget(t, "u1", core.OverallCategory, 1000)
	svc := newExpenseService(f)

	_, out, err := svc.CreateExpense(f.ctx, tokenU1, NewExpense{Amount: dollars(20), Category: "Food", Method: "card"})
	require.NoError(t, err)
	assert.True(t, out.Alerted)
	assert.Len(t, f.recorder.Sent(), 1)
}

func TestImportExpensesTagsOwner(t *testing.T) {
	f := newFixture(t, 2025, 5, 15)
	svc := newExpenseService(f)

	rows := []NewExpense{
		{Amount: dollars(10), Category: "Food", Method: "card", Date: core.NewDate(2025, 5, 1)},
		{Amount: dollars(20), Method: "cash", Notes: "monthly rent"},
		{Amount: dollars(30), Category: "Transport", Method: "card", Date: core.NewDate(2025, 4, 2)},
	}
	stored, err := svc.ImportExpenses(f.ctx, tokenU2, rows)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, e := range stored {
		assert.Equal(t, "u2", e.OwnerID)
	}
	assert.Equal(t, "Housing", stored[1].Category)

	list, err := svc.ListExpenses(f.ctx, tokenU2)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	// Imports never trigger budget alerts.
	assert.Empty(t, f.recorder.Sent())
}

func TestImportExpensesIsAllOrNothing(t *testing.T) {
	f := newFixture(t, 2025, 5, 15)
	svc := newExpenseService(f)

	rows := []NewExpense{
		{Amount: dollars(10), Category: "Food", Method: "card"},
		{Amount: dollars(20), Category: "Food"},
	}
	_, err := svc.ImportExpenses(f.ctx, tokenU1, rows)
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "row 2")

	list, _ := svc.ListExpenses(f.ctx, tokenU1)
	assert.Empty(t, list)

	stored, err := svc.ImportExpenses(f.ctx, tokenU1, nil)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestExpenseOwnership(t *testing.T) {
	f := newFixture(t, 2025, 5, 15)
	svc := newExpenseService(f)
	e := f.addExpense(t, "u1", "Food", 500, f.today())

	_, err := svc.GetExpense(f.ctx, tokenU2, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.UpdateExpense(f.ctx, tokenU2, e.ID, ExpensePatch{Notes: strPtr("mine now")})
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteExpense(f.ctx, tokenU2, e.ID), core.ErrNotFound)

	got, err := svc.GetExpense(f.ctx, tokenU1, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	other, err := svc.ListExpenses(f.ctx, tokenU2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	f := newFixture(t, 2025, 5, 15)
	svc := newExpenseService(f)
	e := f.addExpense(t, "u1", "Food", 500, f.today())

	_, err := svc.UpdateExpense(f.ctx, tokenU1, e.ID, ExpensePatch{})
	assert.ErrorIs(t, err, core.ErrNoFields)

	_, err = svc.UpdateExpense(f.ctx, tokenU1, e.ID, ExpensePatch{Method: strPtr("")})
	assert.ErrorIs(t, err, core.ErrValidation)

	amount := dollars(9)
	updated, err := svc.UpdateExpense(f.ctx, tokenU1, e.ID, ExpensePatch{Amount: &amount, Notes: strPtr("dinner")})
	require.NoError(t, err)
	assert.Equal(t, amount, updated.Amount)
	assert.Equal(t, "dinner", updated.Notes)
	assert.Equal(t, "Food", updated.Category)

	require.NoError(t, svc.DeleteExpense(f.ctx, tokenU1, e.ID))
	_, err = svc.GetExpense(f.ctx, tokenU1, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
