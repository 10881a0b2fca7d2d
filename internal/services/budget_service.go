package services

import (
	"context"
	"fmt"
	"strings"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

// NewBudget is the caller-supplied part of a budget. An empty category
// means "overall"; a zero start date means today.
type NewBudget struct {
	Category  string         `json:"category"`
	Amount    core.Money     `json:"amount"`
	Period    core.Frequency `json:"period"`
	StartDate core.Date      `json:"start_date"`
	EndDate   core.Date      `json:"end_date"`
}

type BudgetPatch struct {
	Category  *string         `json:"category"`
	Amount    *core.Money     `json:"amount"`
	Period    *core.Frequency `json:"period"`
	StartDate *core.Date      `json:"start_date"`
	EndDate   *core.Date      `json:"end_date"`
}

func (p BudgetPatch) empty() bool {
	return p.Category == nil && p.Amount == nil && p.Period == nil && p.StartDate == nil && p.EndDate == nil
}

type BudgetService struct {
	store store.BudgetStore
	auth  auth.Resolver
	clock Clock
}

func NewBudgetService(st store.BudgetStore, resolver auth.Resolver, clock Clock) *BudgetService {
	return &BudgetService{store: st, auth: resolver, clock: clock}
}

func (s *BudgetService) CreateBudget(ctx context.Context, token string, in NewBudget) (core.Budget, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Budget{}, err
	}
	b := core.Budget{
		OwnerID:   owner,
		Category:  strings.TrimSpace(in.Category),
		Amount:    in.Amount,
		Period:    in.Period,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	}
	if b.Category == "" {
		b.Category = core.OverallCategory
	}
	if b.StartDate.IsEmpty() {
		b.StartDate = s.clock.Today()
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	stored, err := s.store.InsertBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	return stored, nil
}

func (s *BudgetService) ListBudgets(ctx context.Context, token string) ([]core.Budget, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListBudgets(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return list, nil
}

func (s *BudgetService) get(ctx context.Context, owner, id string) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, lookupErr("get budget", err)
	}
	if err := owned(owner, b.OwnerID, "budget", id); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *BudgetService) GetBudget(ctx context.Context, token, id string) (core.Budget, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Budget{}, err
	}
	return s.get(ctx, owner, id)
}

func (s *BudgetService) UpdateBudget(ctx context.Context, token, id string, patch BudgetPatch) (core.Budget, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Budget{}, err
	}
	if patch.empty() {
		return core.Budget{}, core.ErrNoFields
	}
	b, err := s.get(ctx, owner, id)
	if err != nil {
		return core.Budget{}, err
	}
	if patch.Category != nil {
		b.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Amount != nil {
		b.Amount = *patch.Amount
	}
	if patch.Period != nil {
		b.Period = *patch.Period
	}
	if patch.StartDate != nil {
		b.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		b.EndDate = *patch.EndDate
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, lookupErr("update budget", err)
	}
	return b, nil
}

func (s *BudgetService) DeleteBudget(ctx context.Context, token, id string) error {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.DeleteBudget(ctx, id); err != nil {
		return lookupErr("delete budget", err)
	}
	return nil
}
