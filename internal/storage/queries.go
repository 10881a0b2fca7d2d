package storage

import (
	"context"
	"database/sql"
)

// Row types mirror the table columns. Dates are kept as the stored text and
// parsed by the repository.
type (
	ExpenseRow struct {
		ID          string
		OwnerID     string
		AmountCents int64
		Category    string
		Date        string
		Method      string
		Notes       string
	}

	BudgetRow struct {
		ID          string
		OwnerID     string
		Category    string
		AmountCents int64
		Period      string
		StartDate   string
		EndDate     string
	}

	RuleRow struct {
		ID               string
		OwnerID          string
		AmountCents      int64
		Category         string
		Method           string
		Frequency        string
		StartDate        string
		EndDate          string
		Status           string
		Notes            string
		NextDueDate      string
		LastMaterialized string
	}

	ReminderRow struct {
		ID       string
		OwnerID  string
		Title    string
		Day      int64
		Message  string
		Active   bool
		LastSent string
	}

	ProfileRow struct {
		OwnerID     string
		Email       string
		DisplayName string
	}

	PreferencesRow struct {
		OwnerID      string
		EmailEnabled bool
		SMSEnabled   bool
	}
)

const expenseColumns = `id, owner_id, amount_cents, category, date, method, notes`

const createExpense = `INSERT INTO expenses (` + expenseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, r ExpenseRow) error {
	_, err := q.db.ExecContext(ctx, createExpense, r.ID, r.OwnerID, r.AmountCents, r.Category, r.Date, r.Method, r.Notes)
	return err
}

const getExpense = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id string) (ExpenseRow, error) {
	var r ExpenseRow
	err := q.db.QueryRowContext(ctx, getExpense, id).Scan(&r.ID, &r.OwnerID, &r.AmountCents, &r.Category, &r.Date, &r.Method, &r.Notes)
	return r, err
}

const listExpensesByOwner = `SELECT ` + expenseColumns + ` FROM expenses WHERE owner_id = ? ORDER BY rowid`

func (q *Queries) ListExpensesByOwner(ctx context.Context, ownerID string) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseRow
	for rows.Next() {
		var r ExpenseRow
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.AmountCents, &r.Category, &r.Date, &r.Method, &r.Notes); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateExpense = `UPDATE expenses SET amount_cents = ?, category = ?, date = ?, method = ?, notes = ? WHERE id = ?`

func (q *Queries) UpdateExpense(ctx context.Context, r ExpenseRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateExpense, r.AmountCents, r.Category, r.Date, r.Method, r.Notes, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const budgetColumns = `id, owner_id, category, amount_cents, period, start_date, end_date`

const createBudget = `INSERT INTO budgets (` + budgetColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateBudget(ctx context.Context, r BudgetRow) error {
	_, err := q.db.ExecContext(ctx, createBudget, r.ID, r.OwnerID, r.Category, r.AmountCents, r.Period, r.StartDate, r.EndDate)
	return err
}

const getBudget = `SELECT ` + budgetColumns + ` FROM budgets WHERE id = ?`

func (q *Queries) GetBudget(ctx context.Context, id string) (BudgetRow, error) {
	var r BudgetRow
	err := q.db.QueryRowContext(ctx, getBudget, id).Scan(&r.ID, &r.OwnerID, &r.Category, &r.AmountCents, &r.Period, &r.StartDate, &r.EndDate)
	return r, err
}

const listBudgetsByOwner = `SELECT ` + budgetColumns + ` FROM budgets WHERE owner_id = ? ORDER BY rowid`

func (q *Queries) ListBudgetsByOwner(ctx context.Context, ownerID string) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetRow
	for rows.Next() {
		var r BudgetRow
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Category, &r.AmountCents, &r.Period, &r.StartDate, &r.EndDate); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateBudget = `UPDATE budgets SET category = ?, amount_cents = ?, period = ?, start_date = ?, end_date = ? WHERE id = ?`

func (q *Queries) UpdateBudget(ctx context.Context, r BudgetRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateBudget, r.Category, r.AmountCents, r.Period, r.StartDate, r.EndDate, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const ruleColumns = `id, owner_id, amount_cents, category, method, frequency, start_date, end_date, status, notes, next_due_date, last_materialized`

func scanRule(s interface{ Scan(...any) error }) (RuleRow, error) {
	var r RuleRow
	err := s.Scan(&r.ID, &r.OwnerID, &r.AmountCents, &r.Category, &r.Method, &r.Frequency,
		&r.StartDate, &r.EndDate, &r.Status, &r.Notes, &r.NextDueDate, &r.LastMaterialized)
	return r, err
}

const createRule = `INSERT INTO recurring_rules (` + ruleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRule(ctx context.Context, r RuleRow) error {
	_, err := q.db.ExecContext(ctx, createRule, r.ID, r.OwnerID, r.AmountCents, r.Category, r.Method, r.Frequency,
		r.StartDate, r.EndDate, r.Status, r.Notes, r.NextDueDate, r.LastMaterialized)
	return err
}

const getRule = `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE id = ?`

func (q *Queries) GetRule(ctx context.Context, id string) (RuleRow, error) {
	return scanRule(q.db.QueryRowContext(ctx, getRule, id))
}

const listRulesByOwner = `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE owner_id = ? ORDER BY rowid`

func (q *Queries) ListRulesByOwner(ctx context.Context, ownerID string) ([]RuleRow, error) {
	return q.queryRules(ctx, listRulesByOwner, ownerID)
}

// Dates are stored as YYYY-MM-DD so text comparison orders them correctly.
const listDueRules = `SELECT ` + ruleColumns + ` FROM recurring_rules
WHERE status = 'active' AND next_due_date != '' AND next_due_date <= ?
ORDER BY rowid`

func (q *Queries) ListDueRules(ctx context.Context, day string) ([]RuleRow, error) {
	return q.queryRules(ctx, listDueRules, day)
}

func (q *Queries) queryRules(ctx context.Context, query string, args ...any) ([]RuleRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RuleRow
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// updateRule leaves status and the schedule columns to advanceRule.
const updateRule = `UPDATE recurring_rules SET amount_cents = ?, category = ?, method = ?, notes = ?, end_date = ?
WHERE id = ?`

func (q *Queries) UpdateRule(ctx context.Context, r RuleRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRule, r.AmountCents, r.Category, r.Method, r.Notes, r.EndDate, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const advanceRule = `UPDATE recurring_rules SET next_due_date = ?, last_materialized = ?, status = ?
WHERE id = ? AND next_due_date = ? AND status = ?`

func (q *Queries) AdvanceRule(ctx context.Context, r RuleRow, expectedNext, expectedStatus string) (int64, error) {
	res, err := q.db.ExecContext(ctx, advanceRule, r.NextDueDate, r.LastMaterialized, r.Status, r.ID, expectedNext, expectedStatus)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const reminderColumns = `id, owner_id, title, day, message, active, last_sent`

func scanReminder(s interface{ Scan(...any) error }) (ReminderRow, error) {
	var r ReminderRow
	err := s.Scan(&r.ID, &r.OwnerID, &r.Title, &r.Day, &r.Message, &r.Active, &r.LastSent)
	return r, err
}

const createReminder = `INSERT INTO reminders (` + reminderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateReminder(ctx context.Context, r ReminderRow) error {
	_, err := q.db.ExecContext(ctx, createReminder, r.ID, r.OwnerID, r.Title, r.Day, r.Message, r.Active, r.LastSent)
	return err
}

const getReminder = `SELECT ` + reminderColumns + ` FROM reminders WHERE id = ?`

func (q *Queries) GetReminder(ctx context.Context, id string) (ReminderRow, error) {
	return scanReminder(q.db.QueryRowContext(ctx, getReminder, id))
}

const listRemindersByOwner = `SELECT ` + reminderColumns + ` FROM reminders WHERE owner_id = ? ORDER BY rowid`

const listActiveReminders = `SELECT ` + reminderColumns + ` FROM reminders WHERE active = 1 ORDER BY rowid`

func (q *Queries) ListRemindersByOwner(ctx context.Context, ownerID string) ([]ReminderRow, error) {
	return q.queryReminders(ctx, listRemindersByOwner, ownerID)
}

func (q *Queries) ListActiveReminders(ctx context.Context) ([]ReminderRow, error) {
	return q.queryReminders(ctx, listActiveReminders)
}

func (q *Queries) queryReminders(ctx context.Context, query string, args ...any) ([]ReminderRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReminderRow
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateReminder = `UPDATE reminders SET title = ?, day = ?, message = ?, active = ? WHERE id = ?`

func (q *Queries) UpdateReminder(ctx context.Context, r ReminderRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateReminder, r.Title, r.Day, r.Message, r.Active, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const claimReminder = `UPDATE reminders SET last_sent = ? WHERE id = ? AND last_sent = ?`

func (q *Queries) ClaimReminder(ctx context.Context, id, expected, sentOn string) (int64, error) {
	res, err := q.db.ExecContext(ctx, claimReminder, sentOn, id, expected)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// deleteFrom runs a delete by id against one of the record tables.
func (q *Queries) deleteFrom(ctx context.Context, table, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteExpense(ctx context.Context, id string) (int64, error) {
	return q.deleteFrom(ctx, "expenses", id)
}

func (q *Queries) DeleteBudget(ctx context.Context, id string) (int64, error) {
	return q.deleteFrom(ctx, "budgets", id)
}

func (q *Queries) DeleteRule(ctx context.Context, id string) (int64, error) {
	return q.deleteFrom(ctx, "recurring_rules", id)
}

func (q *Queries) DeleteReminder(ctx context.Context, id string) (int64, error) {
	return q.deleteFrom(ctx, "reminders", id)
}

const getProfile = `SELECT owner_id, email, display_name FROM user_profiles WHERE owner_id = ?`

func (q *Queries) GetProfile(ctx context.Context, ownerID string) (ProfileRow, error) {
	var r ProfileRow
	err := q.db.QueryRowContext(ctx, getProfile, ownerID).Scan(&r.OwnerID, &r.Email, &r.DisplayName)
	return r, err
}

const upsertProfile = `INSERT INTO user_profiles (owner_id, email, display_name) VALUES (?, ?, ?)
ON CONFLICT(owner_id) DO UPDATE SET email = excluded.email, display_name = excluded.display_name`

func (q *Queries) UpsertProfile(ctx context.Context, r ProfileRow) error {
	_, err := q.db.ExecContext(ctx, upsertProfile, r.OwnerID, r.Email, r.DisplayName)
	return err
}

const getPreferences = `SELECT owner_id, email_enabled, sms_enabled FROM notification_preferences WHERE owner_id = ?`

func (q *Queries) GetPreferences(ctx context.Context, ownerID string) (PreferencesRow, error) {
	var r PreferencesRow
	err := q.db.QueryRowContext(ctx, getPreferences, ownerID).Scan(&r.OwnerID, &r.EmailEnabled, &r.SMSEnabled)
	return r, err
}

const upsertPreferences = `INSERT INTO notification_preferences (owner_id, email_enabled, sms_enabled) VALUES (?, ?, ?)
ON CONFLICT(owner_id) DO UPDATE SET email_enabled = excluded.email_enabled, sms_enabled = excluded.sms_enabled`

func (q *Queries) UpsertPreferences(ctx context.Context, r PreferencesRow) error {
	_, err := q.db.ExecContext(ctx, upsertPreferences, r.OwnerID, r.EmailEnabled, r.SMSEnabled)
	return err
}

var _ DBTX = (*sql.DB)(nil)
