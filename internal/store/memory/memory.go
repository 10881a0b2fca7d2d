package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

var _ store.Store = (*Store)(nil)

// collection keeps records in insertion order so scans are deterministic.
type collection[T any] struct {
	order []string
	items map[string]T
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: map[string]T{}}
}

func (c *collection[T]) put(id string, v T) {
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

func (c *collection[T]) get(id string) (T, bool) {
	v, ok := c.items[id]
	return v, ok
}

func (c *collection[T]) remove(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection[T]) filter(keep func(T) bool) []T {
	out := make([]T, 0)
	for _, id := range c.order {
		if v := c.items[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Store is an in-process document store used for development and tests.
type Store struct {
	mu        sync.Mutex
	expenses  *collection[core.Expense]
	budgets   *collection[core.Budget]
	rules     *collection[core.RecurringRule]
	reminders *collection[core.Reminder]
	profiles  map[string]core.UserProfile
	prefs     map[string]core.NotificationPreferences
}

func New() *Store {
	return &Store{
		expenses:  newCollection[core.Expense](),
		budgets:   newCollection[core.Budget](),
		rules:     newCollection[core.RecurringRule](),
		reminders: newCollection[core.Reminder](),
		profiles:  map[string]core.UserProfile{},
		prefs:     map[string]core.NotificationPreferences{},
	}
}

// NewFromFiles creates a store seeded with user profiles read from
// base/seed_profiles.txt, one "owner_id email [display name]" per line.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_profiles.txt")) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		p := core.UserProfile{OwnerID: fields[0], Email: fields[1]}
		if len(fields) > 2 {
			p.DisplayName = strings.Join(fields[2:], " ")
		}
		s.profiles[p.OwnerID] = p
	}
	return s
}

func (s *Store) Close() error { return nil }

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

// InsertExpense stores the expense under a fresh id.
func (s *Store) InsertExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.NewString()
	s.expenses.put(e.ID, e)
	return e, nil
}

func (s *Store) InsertExpenses(ctx context.Context, es []core.Expense) ([]core.Expense, error) {
	for _, e := range es {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	out := make([]core.Expense, 0, len(es))
	for _, e := range es {
		stored, err := s.InsertExpense(ctx, e)
		if err != nil {
			return out, err
		}
		out = append(out, stored)
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses.get(id)
	if !ok {
		return core.Expense{}, notFound("expense", id)
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, ownerID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expenses.filter(func(e core.Expense) bool { return e.OwnerID == ownerID }), nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses.get(e.ID); !ok {
		return notFound("expense", e.ID)
	}
	s.expenses.put(e.ID, e)
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.expenses.remove(id) {
		return notFound("expense", id)
	}
	return nil
}

func (s *Store) InsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.NewString()
	s.budgets.put(b.ID, b)
	return b, nil
}

func (s *Store) GetBudget(_ context.Context, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets.get(id)
	if !ok {
		return core.Budget{}, notFound("budget", id)
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, ownerID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budgets.filter(func(b core.Budget) bool { return b.OwnerID == ownerID }), nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets.get(b.ID); !ok {
		return notFound("budget", b.ID)
	}
	s.budgets.put(b.ID, b)
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.budgets.remove(id) {
		return notFound("budget", id)
	}
	return nil
}

func (s *Store) InsertRule(_ context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	s.rules.put(r.ID, r)
	return r, nil
}

func (s *Store) GetRule(_ context.Context, id string) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules.get(id)
	if !ok {
		return core.RecurringRule{}, notFound("recurring rule", id)
	}
	return r, nil
}

func (s *Store) ListRules(_ context.Context, ownerID string) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.filter(func(r core.RecurringRule) bool { return r.OwnerID == ownerID }), nil
}

func (s *Store) ListDueRules(_ context.Context, day core.Date) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.filter(func(r core.RecurringRule) bool {
		return r.Status == core.StatusActive && !r.NextDueDate.IsEmpty() && !r.NextDueDate.After(day)
	}), nil
}

func (s *Store) UpdateRule(_ context.Context, r core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rules.get(r.ID)
	if !ok {
		return notFound("recurring rule", r.ID)
	}
	cur.Amount = r.Amount
	cur.Category = r.Category
	cur.Method = r.Method
	cur.Notes = r.Notes
	cur.EndDate = r.EndDate
	s.rules.put(cur.ID, cur)
	return nil
}

func (s *Store) AdvanceRule(_ context.Context, expected, r core.RecurringRule) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rules.get(r.ID)
	if !ok {
		return false, notFound("recurring rule", r.ID)
	}
	if !cur.NextDueDate.Equal(expected.NextDueDate) || cur.Status != expected.Status {
		return false, nil
	}
	cur.NextDueDate = r.NextDueDate
	cur.LastMaterialized = r.LastMaterialized
	cur.Status = r.Status
	s.rules.put(cur.ID, cur)
	return true, nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rules.remove(id) {
		return notFound("recurring rule", id)
	}
	return nil
}

func (s *Store) InsertReminder(_ context.Context, r core.Reminder) (core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	s.reminders.put(r.ID, r)
	return r, nil
}

func (s *Store) GetReminder(_ context.Context, id string) (core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders.get(id)
	if !ok {
		return core.Reminder{}, notFound("reminder", id)
	}
	return r, nil
}

func (s *Store) ListReminders(_ context.Context, ownerID string) ([]core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminders.filter(func(r core.Reminder) bool { return r.OwnerID == ownerID }), nil
}

func (s *Store) ListActiveReminders(_ context.Context) ([]core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminders.filter(func(r core.Reminder) bool { return r.Active }), nil
}

func (s *Store) UpdateReminder(_ context.Context, r core.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reminders.get(r.ID)
	if !ok {
		return notFound("reminder", r.ID)
	}
	r.LastSent = cur.LastSent
	s.reminders.put(r.ID, r)
	return nil
}

func (s *Store) ClaimReminder(_ context.Context, id string, expected, sentOn core.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reminders.get(id)
	if !ok {
		return false, notFound("reminder", id)
	}
	if !cur.LastSent.Equal(expected) {
		return false, nil
	}
	cur.LastSent = sentOn
	s.reminders.put(id, cur)
	return true, nil
}

func (s *Store) DeleteReminder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reminders.remove(id) {
		return notFound("reminder", id)
	}
	return nil
}

func (s *Store) GetProfile(_ context.Context, ownerID string) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[ownerID]
	if !ok {
		return core.UserProfile{}, notFound("profile", ownerID)
	}
	return p, nil
}

func (s *Store) PutProfile(_ context.Context, p core.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.OwnerID] = p
	return nil
}

func (s *Store) GetPreferences(_ context.Context, ownerID string) (core.NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[ownerID]
	if !ok {
		return core.NotificationPreferences{}, notFound("preferences", ownerID)
	}
	return p, nil
}

func (s *Store) PutPreferences(_ context.Context, p core.NotificationPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[p.OwnerID] = p
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
