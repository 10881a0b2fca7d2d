package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

var _ store.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it. ":memory:" gives a private in-memory database.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// mapErr turns driver errors into domain kinds.
func mapErr(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	case isTransient(err):
		return fmt.Errorf("%s: %w: %w", op, core.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isTransient reports failures worth retrying: a locked or busy database
// and a context that ran out of time.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

func affected(op string, n int64, err error) error {
	if err != nil {
		return mapErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

// loadDate parses a stored date. Unparseable values load as the zero date,
// which aggregations skip.
func loadDate(s string) core.Date {
	if strings.TrimSpace(s) == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		slog.Warn("Unparseable stored date", "value", s)
		return core.Date{}
	}
	return d
}

func expenseFromRow(r ExpenseRow) core.Expense {
	return core.Expense{
		ID:       r.ID,
		OwnerID:  r.OwnerID,
		Amount:   core.Money{Cents: r.AmountCents},
		Category: r.Category,
		Date:     loadDate(r.Date),
		Method:   r.Method,
		Notes:    r.Notes,
	}
}

func expenseToRow(e core.Expense) ExpenseRow {
	return ExpenseRow{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		AmountCents: e.Amount.Cents,
		Category:    e.Category,
		Date:        e.Date.String(),
		Method:      e.Method,
		Notes:       e.Notes,
	}
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.ID = uuid.NewString()
	if err := r.queries.CreateExpense(ctx, expenseToRow(e)); err != nil {
		return core.Expense{}, mapErr("create expense", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"owner_id", e.OwnerID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"date", e.Date.String())

	return e, nil
}

// InsertExpenses writes the batch in a single transaction.
func (r *SQLiteRepository) InsertExpenses(ctx context.Context, es []core.Expense) ([]core.Expense, error) {
	for _, e := range es {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapErr("begin import", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	out := make([]core.Expense, 0, len(es))
	for _, e := range es {
		e.ID = uuid.NewString()
		if err := q.CreateExpense(ctx, expenseToRow(e)); err != nil {
			return nil, mapErr("create expense", err)
		}
		out = append(out, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapErr("commit import", err)
	}

	slog.InfoContext(ctx, "Expense batch saved to SQLite", "count", len(out))
	return out, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, mapErr("get expense", err)
	}
	return expenseFromRow(row), nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapErr("list expenses", err)
	}
	out := make([]core.Expense, len(rows))
	for i, row := range rows {
		out[i] = expenseFromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	n, err := r.queries.UpdateExpense(ctx, expenseToRow(e))
	return affected("update expense", n, err)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	n, err := r.queries.DeleteExpense(ctx, id)
	return affected("delete expense", n, err)
}

func budgetFromRow(r BudgetRow) core.Budget {
	return core.Budget{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Category:  r.Category,
		Amount:    core.Money{Cents: r.AmountCents},
		Period:    core.Frequency(r.Period),
		StartDate: loadDate(r.StartDate),
		EndDate:   loadDate(r.EndDate),
	}
}

func budgetToRow(b core.Budget) BudgetRow {
	return BudgetRow{
		ID:          b.ID,
		OwnerID:     b.OwnerID,
		Category:    b.Category,
		AmountCents: b.Amount.Cents,
		Period:      string(b.Period),
		StartDate:   b.StartDate.String(),
		EndDate:     b.EndDate.String(),
	}
}

func (r *SQLiteRepository) InsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = uuid.NewString()
	if err := r.queries.CreateBudget(ctx, budgetToRow(b)); err != nil {
		return core.Budget{}, mapErr("create budget", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	row, err := r.queries.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, mapErr("get budget", err)
	}
	return budgetFromRow(row), nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgetsByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapErr("list budgets", err)
	}
	out := make([]core.Budget, len(rows))
	for i, row := range rows {
		out[i] = budgetFromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	n, err := r.queries.UpdateBudget(ctx, budgetToRow(b))
	return affected("update budget", n, err)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	n, err := r.queries.DeleteBudget(ctx, id)
	return affected("delete budget", n, err)
}

func ruleFromRow(r RuleRow) core.RecurringRule {
	return core.RecurringRule{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		Amount:           core.Money{Cents: r.AmountCents},
		Category:         r.Category,
		Method:           r.Method,
		Frequency:        core.Frequency(r.Frequency),
		StartDate:        loadDate(r.StartDate),
		EndDate:          loadDate(r.EndDate),
		Status:           core.RuleStatus(r.Status),
		Notes:            r.Notes,
		NextDueDate:      loadDate(r.NextDueDate),
		LastMaterialized: loadDate(r.LastMaterialized),
	}
}

func ruleToRow(r core.RecurringRule) RuleRow {
	return RuleRow{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		AmountCents:      r.Amount.Cents,
		Category:         r.Category,
		Method:           r.Method,
		Frequency:        string(r.Frequency),
		StartDate:        r.StartDate.String(),
		EndDate:          r.EndDate.String(),
		Status:           string(r.Status),
		Notes:            r.Notes,
		NextDueDate:      r.NextDueDate.String(),
		LastMaterialized: r.LastMaterialized.String(),
	}
}

func (r *SQLiteRepository) InsertRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	rule.ID = uuid.NewString()
	if err := r.queries.CreateRule(ctx, ruleToRow(rule)); err != nil {
		return core.RecurringRule{}, mapErr("create recurring rule", err)
	}
	return rule, nil
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (core.RecurringRule, error) {
	row, err := r.queries.GetRule(ctx, id)
	if err != nil {
		return core.RecurringRule{}, mapErr("get recurring rule", err)
	}
	return ruleFromRow(row), nil
}

func (r *SQLiteRepository) ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	rows, err := r.queries.ListRulesByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapErr("list recurring rules", err)
	}
	return rulesFromRows(rows), nil
}

func (r *SQLiteRepository) ListDueRules(ctx context.Context, day core.Date) ([]core.RecurringRule, error) {
	rows, err := r.queries.ListDueRules(ctx, day.String())
	if err != nil {
		return nil, mapErr("list due rules", err)
	}
	return rulesFromRows(rows), nil
}

func rulesFromRows(rows []RuleRow) []core.RecurringRule {
	out := make([]core.RecurringRule, len(rows))
	for i, row := range rows {
		out[i] = ruleFromRow(row)
	}
	return out
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurringRule) error {
	n, err := r.queries.UpdateRule(ctx, ruleToRow(rule))
	return affected("update recurring rule", n, err)
}

func (r *SQLiteRepository) AdvanceRule(ctx context.Context, expected, rule core.RecurringRule) (bool, error) {
	n, err := r.queries.AdvanceRule(ctx, ruleToRow(rule), expected.NextDueDate.String(), string(expected.Status))
	if err != nil {
		return false, mapErr("advance recurring rule", err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.queries.GetRule(ctx, rule.ID); err != nil {
		return false, mapErr("advance recurring rule", err)
	}
	return false, nil
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	n, err := r.queries.DeleteRule(ctx, id)
	return affected("delete recurring rule", n, err)
}

func reminderFromRow(r ReminderRow) core.Reminder {
	return core.Reminder{
		ID:       r.ID,
		OwnerID:  r.OwnerID,
		Title:    r.Title,
		Day:      int(r.Day),
		Message:  r.Message,
		Active:   r.Active,
		LastSent: loadDate(r.LastSent),
	}
}

func reminderToRow(r core.Reminder) ReminderRow {
	return ReminderRow{
		ID:       r.ID,
		OwnerID:  r.OwnerID,
		Title:    r.Title,
		Day:      int64(r.Day),
		Message:  r.Message,
		Active:   r.Active,
		LastSent: r.LastSent.String(),
	}
}

func remindersFromRows(rows []ReminderRow) []core.Reminder {
	out := make([]core.Reminder, len(rows))
	for i, row := range rows {
		out[i] = reminderFromRow(row)
	}
	return out
}

func (r *SQLiteRepository) InsertReminder(ctx context.Context, rem core.Reminder) (core.Reminder, error) {
	rem.ID = uuid.NewString()
	if err := r.queries.CreateReminder(ctx, reminderToRow(rem)); err != nil {
		return core.Reminder{}, mapErr("create reminder", err)
	}
	return rem, nil
}

func (r *SQLiteRepository) GetReminder(ctx context.Context, id string) (core.Reminder, error) {
	row, err := r.queries.GetReminder(ctx, id)
	if err != nil {
		return core.Reminder{}, mapErr("get reminder", err)
	}
	return reminderFromRow(row), nil
}

func (r *SQLiteRepository) ListReminders(ctx context.Context, ownerID string) ([]core.Reminder, error) {
	rows, err := r.queries.ListRemindersByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapErr("list reminders", err)
	}
	return remindersFromRows(rows), nil
}

func (r *SQLiteRepository) ListActiveReminders(ctx context.Context) ([]core.Reminder, error) {
	rows, err := r.queries.ListActiveReminders(ctx)
	if err != nil {
		return nil, mapErr("list active reminders", err)
	}
	return remindersFromRows(rows), nil
}

func (r *SQLiteRepository) UpdateReminder(ctx context.Context, rem core.Reminder) error {
	n, err := r.queries.UpdateReminder(ctx, reminderToRow(rem))
	return affected("update reminder", n, err)
}

func (r *SQLiteRepository) ClaimReminder(ctx context.Context, id string, expected, sentOn core.Date) (bool, error) {
	n, err := r.queries.ClaimReminder(ctx, id, expected.String(), sentOn.String())
	if err != nil {
		return false, mapErr("claim reminder", err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.queries.GetReminder(ctx, id); err != nil {
		return false, mapErr("claim reminder", err)
	}
	return false, nil
}

func (r *SQLiteRepository) DeleteReminder(ctx context.Context, id string) error {
	n, err := r.queries.DeleteReminder(ctx, id)
	return affected("delete reminder", n, err)
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, ownerID string) (core.UserProfile, error) {
	row, err := r.queries.GetProfile(ctx, ownerID)
	if err != nil {
		return core.UserProfile{}, mapErr("get profile", err)
	}
	return core.UserProfile{OwnerID: row.OwnerID, Email: row.Email, DisplayName: row.DisplayName}, nil
}

func (r *SQLiteRepository) PutProfile(ctx context.Context, p core.UserProfile) error {
	if err := r.queries.UpsertProfile(ctx, ProfileRow{OwnerID: p.OwnerID, Email: p.Email, DisplayName: p.DisplayName}); err != nil {
		return mapErr("put profile", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPreferences(ctx context.Context, ownerID string) (core.NotificationPreferences, error) {
	row, err := r.queries.GetPreferences(ctx, ownerID)
	if err != nil {
		return core.NotificationPreferences{}, mapErr("get preferences", err)
	}
	return core.NotificationPreferences{OwnerID: row.OwnerID, EmailEnabled: row.EmailEnabled, SMSEnabled: row.SMSEnabled}, nil
}

func (r *SQLiteRepository) PutPreferences(ctx context.Context, p core.NotificationPreferences) error {
	row := PreferencesRow{OwnerID: p.OwnerID, EmailEnabled: p.EmailEnabled, SMSEnabled: p.SMSEnabled}
	if err := r.queries.UpsertPreferences(ctx, row); err != nil {
		return mapErr("put preferences", err)
	}
	return nil
}
