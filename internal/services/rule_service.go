package services

import (
	"context"
	"fmt"
	"log/slog"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

// NewRule is the caller-supplied part of a recurring rule. The first
// occurrence is the start date (today when zero).
type NewRule struct {
	Amount    core.Money     `json:"amount"`
	Category  string         `json:"category"`
	Method    string         `json:"method"`
	Frequency core.Frequency `json:"frequency"`
	StartDate core.Date      `json:"start_date"`
	EndDate   core.Date      `json:"end_date"`
	Notes     string         `json:"notes"`
}

// RulePatch changes what a rule charges, never its schedule anchor.
type RulePatch struct {
	Amount   *core.Money `json:"amount"`
	Category *string     `json:"category"`
	Method   *string     `json:"method"`
	Notes    *string     `json:"notes"`
	EndDate  *core.Date  `json:"end_date"`
}

func (p RulePatch) empty() bool {
	return p.Amount == nil && p.Category == nil && p.Method == nil && p.Notes == nil && p.EndDate == nil
}

type RuleService struct {
	store      store.RuleStore
	auth       auth.Resolver
	classifier CategoryClassifier
	clock      Clock
}

func NewRuleService(st store.RuleStore, resolver auth.Resolver, classifier CategoryClassifier, clock Clock) *RuleService {
	return &RuleService{store: st, auth: resolver, classifier: classifier, clock: clock}
}

func (s *RuleService) CreateRule(ctx context.Context, token string, in NewRule) (core.RecurringRule, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.RecurringRule{}, err
	}
	r := core.RecurringRule{
		OwnerID:   owner,
		Amount:    in.Amount,
		Category:  s.classifier.Classify(in.Category, in.Notes),
		Method:    in.Method,
		Frequency: in.Frequency,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    core.StatusActive,
		Notes:     in.Notes,
	}
	if r.StartDate.IsEmpty() {
		r.StartDate = s.clock.Today()
	}
	r.NextDueDate = r.StartDate
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	stored, err := s.store.InsertRule(ctx, r)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("save recurring rule: %w", err)
	}
	slog.InfoContext(ctx, "Recurring rule created",
		"id", stored.ID,
		"owner_id", owner,
		"frequency", stored.Frequency,
		"next_due", stored.NextDueDate.String())
	return stored, nil
}

func (s *RuleService) ListRules(ctx context.Context, token string) ([]core.RecurringRule, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListRules(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	return list, nil
}

func (s *RuleService) get(ctx context.Context, owner, id string) (core.RecurringRule, error) {
	r, err := s.store.GetRule(ctx, id)
	if err != nil {
		return core.RecurringRule{}, lookupErr("get recurring rule", err)
	}
	if err := owned(owner, r.OwnerID, "recurring rule", id); err != nil {
		return core.RecurringRule{}, err
	}
	return r, nil
}

func (s *RuleService) GetRule(ctx context.Context, token, id string) (core.RecurringRule, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.RecurringRule{}, err
	}
	return s.get(ctx, owner, id)
}

func (s *RuleService) UpdateRule(ctx context.Context, token, id string, patch RulePatch) (core.RecurringRule, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if patch.empty() {
		return core.RecurringRule{}, core.ErrNoFields
	}
	r, err := s.get(ctx, owner, id)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if patch.Amount != nil {
		r.Amount = *patch.Amount
	}
	if patch.Category != nil {
		r.Category = *patch.Category
	}
	if patch.Method != nil {
		r.Method = *patch.Method
	}
	if patch.Notes != nil {
		r.Notes = *patch.Notes
	}
	if patch.EndDate != nil {
		r.EndDate = *patch.EndDate
	}
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if err := s.store.UpdateRule(ctx, r); err != nil {
		return core.RecurringRule{}, lookupErr("update recurring rule", err)
	}
	// Reload: a sweep may have advanced the schedule meanwhile.
	updated, err := s.store.GetRule(ctx, id)
	if err != nil {
		return core.RecurringRule{}, lookupErr("get recurring rule", err)
	}
	return updated, nil
}

// statusAttempts bounds how often SetStatus retries after losing a race
// with a sweep.
const statusAttempts = 3

// SetStatus moves a rule between active and paused or cancels it. Resuming
// skips the occurrences missed while paused: the next due date moves to the
// first occurrence on or after today.
func (s *RuleService) SetStatus(ctx context.Context, token, id string, status core.RuleStatus) (core.RecurringRule, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if !status.IsValid() {
		return core.RecurringRule{}, core.ErrInvalidStatus
	}
	for attempt := 0; attempt < statusAttempts; attempt++ {
		r, err := s.get(ctx, owner, id)
		if err != nil {
			return core.RecurringRule{}, err
		}
		if status == core.StatusExpired || !r.Status.CanTransition(status) {
			return core.RecurringRule{}, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, r.Status, status)
		}

		next := r
		if r.Status == core.StatusPaused && status == core.StatusActive {
			today := s.clock.Today()
			if r.NextDueDate.Before(today) {
				due, err := nextAfter(r.Frequency, r.NextDueDate, r.StartDate, today.AddDays(-1))
				if err != nil {
					return core.RecurringRule{}, err
				}
				next.NextDueDate = due
			}
		}
		next.Status = status

		ok, err := s.store.AdvanceRule(ctx, r, next)
		if err != nil {
			return core.RecurringRule{}, lookupErr("update recurring rule", err)
		}
		if ok {
			slog.InfoContext(ctx, "Recurring rule status changed", "id", id, "status", status, "next_due", next.NextDueDate.String())
			return next, nil
		}
	}
	return core.RecurringRule{}, fmt.Errorf("update recurring rule %s: schedule kept changing: %w", id, core.ErrTransient)
}

func (s *RuleService) DeleteRule(ctx context.Context, token, id string) error {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return lookupErr("delete recurring rule", err)
	}
	return nil
}
