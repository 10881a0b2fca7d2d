package services

import (
	"context"
	"fmt"
	"log/slog"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

// NewExpense is the caller-supplied part of an expense. An empty category
// is classified from the notes; a zero date means today.
type NewExpense struct {
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
	Date     core.Date  `json:"date"`
	Method   string     `json:"method"`
	Notes    string     `json:"notes"`
}

// ExpensePatch lists the fields an update may change.
type ExpensePatch struct {
	Amount   *core.Money `json:"amount"`
	Category *string     `json:"category"`
	Date     *core.Date  `json:"date"`
	Method   *string     `json:"method"`
	Notes    *string     `json:"notes"`
}

func (p ExpensePatch) empty() bool {
	return p.Amount == nil && p.Category == nil && p.Date == nil && p.Method == nil && p.Notes == nil
}

func (p ExpensePatch) apply(e *core.Expense) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Method != nil {
		e.Method = *p.Method
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
}

// ExpenseService owns the expense lifecycle: classification on the way in,
// the budget check after every write, and owner scoping on every access.
type ExpenseService struct {
	store      store.ExpenseStore
	auth       auth.Resolver
	classifier CategoryClassifier
	monitor    *BudgetMonitor
	clock      Clock
}

// NewExpenseService wires the service. monitor may be nil to skip budget checks.
func NewExpenseService(st store.ExpenseStore, resolver auth.Resolver, classifier CategoryClassifier, monitor *BudgetMonitor, clock Clock) *ExpenseService {
	return &ExpenseService{
		store:      st,
		auth:       resolver,
		classifier: classifier,
		monitor:    monitor,
		clock:      clock,
	}
}

func (s *ExpenseService) draft(owner string, in NewExpense) core.Expense {
	e := core.Expense{
		OwnerID:  owner,
		Amount:   in.Amount,
		Category: s.classifier.Classify(in.Category, in.Notes),
		Date:     in.Date,
		Method:   in.Method,
		Notes:    in.Notes,
	}
	if e.Date.IsEmpty() {
		e.Date = s.clock.Today()
	}
	return e
}

// CreateExpense stores a new expense and then runs the budget check. The
// outcome of the check never fails the write.
func (s *ExpenseService) CreateExpense(ctx context.Context, token string, in NewExpense) (core.Expense, AlertOutcome, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Expense{}, AlertOutcome{}, err
	}

	e := s.draft(owner, in)
	if err := e.Validate(); err != nil {
		return core.Expense{}, AlertOutcome{}, err
	}

	stored, err := s.store.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, AlertOutcome{}, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"id", stored.ID,
		"owner_id", owner,
		"category", stored.Category,
		"amount_cents", stored.Amount.Cents)

	var outcome AlertOutcome
	if s.monitor != nil {
		outcome = s.monitor.Check(ctx, stored)
	}
	return stored, outcome, nil
}

// ImportExpenses validates every row first and stores nothing if any row is
// invalid. Each row is owned by the caller whatever the source said.
func (s *ExpenseService) ImportExpenses(ctx context.Context, token string, rows []NewExpense) ([]core.Expense, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	batch := make([]core.Expense, 0, len(rows))
	for i, in := range rows {
		e := s.draft(owner, in)
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		batch = append(batch, e)
	}
	if len(batch) == 0 {
		return []core.Expense{}, nil
	}

	stored, err := s.store.InsertExpenses(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("import expenses: %w", err)
	}
	slog.InfoContext(ctx, "Expenses imported", "owner_id", owner, "count", len(stored))
	return stored, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, token string) ([]core.Expense, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListExpenses(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

func (s *ExpenseService) get(ctx context.Context, owner, id string) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, lookupErr("get expense", err)
	}
	if err := owned(owner, e.OwnerID, "expense", id); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, token, id string) (core.Expense, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Expense{}, err
	}
	return s.get(ctx, owner, id)
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, token, id string, patch ExpensePatch) (core.Expense, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Expense{}, err
	}
	if patch.empty() {
		return core.Expense{}, core.ErrNoFields
	}
	e, err := s.get(ctx, owner, id)
	if err != nil {
		return core.Expense{}, err
	}
	patch.apply(&e)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, lookupErr("update expense", err)
	}
	return e, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, token, id string) error {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return lookupErr("delete expense", err)
	}
	slog.InfoContext(ctx, "Expense deleted", "id", id, "owner_id", owner)
	return nil
}
