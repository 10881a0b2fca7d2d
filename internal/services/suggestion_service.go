package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

// OnTrackMessage is the only suggestion when nothing stands out.
const OnTrackMessage = "You're on track! No overspending detected this month."

// SubscriptionMessage is emitted when several subscription rules exist.
const SubscriptionMessage = "You have multiple active subscriptions. Consider cancelling unused ones to save money."

// SubscriptionKeywords are matched case-insensitively in recurring rule notes.
var SubscriptionKeywords = []string{"spotify", "netflix", "prime", "hotstar"}

const minSubscriptions = 3

var overspendFactor = decimal.RequireFromString("1.2")

type SuggestionService struct {
	expenses store.ExpenseStore
	rules    store.RuleStore
	auth     auth.Resolver
	clock    Clock
}

func NewSuggestionService(expenses store.ExpenseStore, rules store.RuleStore, resolver auth.Resolver, clock Clock) *SuggestionService {
	return &SuggestionService{expenses: expenses, rules: rules, auth: resolver, clock: clock}
}

// Suggest flags categories whose spend this month is well above their
// average over the other months, and clusters of subscriptions.
func (s *SuggestionService) Suggest(ctx context.Context, token string) (core.Suggestions, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Suggestions{}, err
	}

	var (
		expenses []core.Expense
		rules    []core.RecurringRule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.ListExpenses(gctx, owner)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rules, err = s.rules.ListRules(gctx, owner)
		if err != nil {
			return fmt.Errorf("list recurring rules: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Suggestions{}, err
	}

	return BuildSuggestions(expenses, rules, s.clock.Today()), nil
}

// BuildSuggestions is the pure part of Suggest. Overage suggestions come
// first in category order, then the subscription suggestion, and the
// on-track message only when the list would otherwise be empty.
func BuildSuggestions(expenses []core.Expense, rules []core.RecurringRule, today core.Date) core.Suggestions {
	out := core.Suggestions{Suggestions: []string{}}
	current := today.MonthKey()

	byMonth := map[string]map[string]core.Money{}
	for _, e := range expenses {
		if e.Date.IsEmpty() {
			out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("expense %s: unreadable date skipped", e.ID))
			continue
		}
		m := e.Date.MonthKey()
		if byMonth[m] == nil {
			byMonth[m] = map[string]core.Money{}
		}
		byMonth[m][e.Category] = byMonth[m][e.Category].Add(e.Amount)
	}

	var others []string
	for m := range byMonth {
		if m != current {
			others = append(others, m)
		}
	}

	if len(others) > 0 {
		months := decimal.NewFromInt(int64(len(others)))
		for _, category := range sortedKeys(byMonth[current]) {
			spend := byMonth[current][category].Decimal()

			sum := decimal.Zero
			for _, m := range others {
				sum = sum.Add(byMonth[m][category].Decimal())
			}
			avg := sum.Div(months)
			if !avg.IsPositive() || !spend.GreaterThan(avg.Mul(overspendFactor)) {
				continue
			}

			pct := spend.Sub(avg).Div(avg).Mul(hundred).Round(0)
			out.Suggestions = append(out.Suggestions, fmt.Sprintf(
				"Your **%s** spending is %s%% higher this month than your monthly average of %s.",
				category, pct.String(), avg.StringFixed(2)))
		}
	}

	subscriptions := 0
	for _, r := range rules {
		if r.Status.IsTerminal() {
			continue
		}
		notes := strings.ToLower(r.Notes)
		for _, k := range SubscriptionKeywords {
			if strings.Contains(notes, k) {
				subscriptions++
				break
			}
		}
	}
	if subscriptions >= minSubscriptions {
		out.Suggestions = append(out.Suggestions, SubscriptionMessage)
	}

	if len(out.Suggestions) == 0 {
		out.Suggestions = append(out.Suggestions, OnTrackMessage)
	}
	return out
}
