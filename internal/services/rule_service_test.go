package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store/memory"
)

func newRuleService(f *fixture) *RuleService {
	return NewRuleService(f.store, f.resolver, NewClassifierByName("keyword"), f.clock())
}

func TestCreateRule(t *testing.T) {
	f := newFixture(t, 2025, 1, 10)
	svc := newRuleService(f)

	r, err := svc.CreateRule(f.ctx, tokenU1, NewRule{
		Amount:    core.Money{Cents: 1599},
		Method:    "card",
		Frequency: core.Monthly,
		Notes:     "Netflix subscription",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", r.OwnerID)
	assert.Equal(t, "Entertainment", r.Category)
	assert.Equal(t, core.StatusActive, r.Status)
	assert.True(t, r.StartDate.Equal(core.NewDate(2025, 1, 10)))
	assert.True(t, r.NextDueDate.Equal(r.StartDate))

	_, err = svc.CreateRule(f.ctx, tokenU1, NewRule{Amount: dollars(1), Method: "card", Frequency: "hourly"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.CreateRule(f.ctx, tokenU1, NewRule{
		Amount:    dollars(1),
		Method:    "card",
		Frequency: core.Daily,
		StartDate: core.NewDate(2025, 2, 1),
		EndDate:   core.NewDate(2025, 1, 1),
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRuleStatusTransitions(t *testing.T) {
	f := newFixture(t, 2025, 1, 10)
	svc := newRuleService(f)
	r, err := svc.CreateRule(f.ctx, tokenU1, NewRule{
		Amount:    dollars(10),
		Category:  "Fitness",
		Method:    "card",
		Frequency: core.Monthly,
		StartDate: core.NewDate(2025, 1, 10),
	})
	require.NoError(t, err)

	paused, err := svc.SetStatus(f.ctx, tokenU1, r.ID, core.StatusPaused)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaused, paused.Status)

	_, err = svc.SetStatus(f.ctx, tokenU1, r.ID, core.StatusExpired)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = svc.SetStatus(f.ctx, tokenU1, r.ID, "stopped")
	assert.ErrorIs(t, err, core.ErrInvalidStatus)

	// Resuming in May skips January through May.
	f.now = time.Date(2025, 5, 15, 9, 0, 0, 0, time.UTC)
	resumed, err := svc.SetStatus(f.ctx, tokenU1, r.ID, core.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, resumed.Status)
	assert.True(t, resumed.NextDueDate.Equal(core.NewDate(2025, 6, 10)), "next due = %s", resumed.NextDueDate)

	cancelled, err := svc.SetStatus(f.ctx, tokenU1, r.ID, core.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, cancelled.Status)

	_, err = svc.SetStatus(f.ctx, tokenU1, r.ID, core.StatusActive)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestResumeOnOccurrenceDayKeepsIt(t *testing.T) {
	f := newFixture(t, 2025, 1, 10)
	svc := newRuleService(f)
	r, err := svc.CreateRule(f.ctx, tokenU1, NewRule{
		Amount: dollars(10), Category: "Fitness", Method: "card", Frequency: core.Monthly,
	})
	require.NoError(t, err)
	_, err = svc.SetStatus(f.ctx, tokenU1, r.ID, core.StatusPaused)
	require.NoError(t, err)

	f.now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	resumed, err := svc.SetStatus(f.ctx, tokenU1, r.ID, core.StatusActive)
	require.NoError(t, err)
	assert.True(t, resumed.NextDueDate.Equal(core.NewDate(2025, 3, 10)))
}

func TestUpdateRule(t *testing.T) {
	f := newFixture(t, 2025, 1, 10)
	svc := newRuleService(f)
	r, err := svc.CreateRule(f.ctx, tokenU1, NewRule{
		Amount: dollars(10), Category: "Fitness", Method: "card", Frequency: core.Weekly,
	})
	require.NoError(t, err)

	_, err = svc.UpdateRule(f.ctx, tokenU1, r.ID, RulePatch{})
	assert.ErrorIs(t, err, core.ErrNoFields)

	end := core.NewDate(2025, 12, 31)
	updated, err := svc.UpdateRule(f.ctx, tokenU1, r.ID, RulePatch{EndDate: &end, Notes: strPtr("gym")})
	require.NoError(t, err)
	assert.True(t, updated.EndDate.Equal(end))
	assert.True(t, updated.NextDueDate.Equal(r.NextDueDate))

	_, err = svc.UpdateRule(f.ctx, tokenU2, r.ID, RulePatch{Notes: strPtr("x")})
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := svc.ListRules(f.ctx, tokenU1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, svc.DeleteRule(f.ctx, tokenU2, r.ID), core.ErrNotFound)
	require.NoError(t, svc.DeleteRule(f.ctx, tokenU1, r.ID))
	_, err = svc.GetRule(f.ctx, tokenU1, r.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// sweepingRules runs a sweep right after the first rule read, so the caller
// goes on with a copy the sweep has made stale.
type sweepingRules struct {
	*memory.Store
	sweep func()
	done  bool
}

func (s *sweepingRules) GetRule(ctx context.Context, id string) (core.RecurringRule, error) {
	r, err := s.Store.GetRule(ctx, id)
	if !s.done {
		s.done = true
		s.sweep()
	}
	return r, err
}

func TestEditsRacingASweepKeepItsClaim(t *testing.T) {
	tests := []struct {
		name       string
		edit       func(svc *RuleService, f *fixture, id string) (core.RecurringRule, error)
		wantStatus core.RuleStatus
	}{
		{
			name: "update notes",
			edit: func(svc *RuleService, f *fixture, id string) (core.RecurringRule, error) {
				return svc.UpdateRule(f.ctx, tokenU1, id, RulePatch{Notes: strPtr("netflix premium")})
			},
			wantStatus: core.StatusActive,
		},
		{
			name: "pause",
			edit: func(svc *RuleService, f *fixture, id string) (core.RecurringRule, error) {
				return svc.SetStatus(f.ctx, tokenU1, id, core.StatusPaused)
			},
			wantStatus: core.StatusPaused,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2025, 5, 10)
			rule := f.addRule(t, core.RecurringRule{
				Frequency:   core.Monthly,
				StartDate:   core.NewDate(2025, 1, 10),
				Notes:       "netflix",
				NextDueDate: core.NewDate(2025, 5, 10),
			})
			processor := NewRecurringProcessor(f.store, f.store, nil)
			rules := &sweepingRules{Store: f.store, sweep: func() {
				res, err := processor.ProcessDueRules(f.ctx, f.today())
				require.NoError(t, err)
				require.Equal(t, 1, res.Materialized)
			}}
			svc := NewRuleService(rules, f.resolver, NewClassifierByName("keyword"), f.clock())

			got, err := tt.edit(svc, f, rule.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.True(t, got.NextDueDate.Equal(core.NewDate(2025, 6, 10)), "next due = %s", got.NextDueDate)

			// A second sweep on the same day must not charge again.
			_, err = processor.ProcessDueRules(f.ctx, f.today())
			require.NoError(t, err)

			stored, err := f.store.GetRule(f.ctx, rule.ID)
			require.NoError(t, err)
			assert.True(t, stored.NextDueDate.Equal(core.NewDate(2025, 6, 10)))
			assert.True(t, stored.LastMaterialized.Equal(core.NewDate(2025, 5, 10)))
			expenses, err := f.store.ListExpenses(f.ctx, "u1")
			require.NoError(t, err)
			assert.Len(t, expenses, 1)
		})
	}
}
