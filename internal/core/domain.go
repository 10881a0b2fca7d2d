package core

import (
	"strings"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	StatusActive    RuleStatus = "active"
	StatusPaused    RuleStatus = "paused"
	StatusCancelled RuleStatus = "cancelled"
	StatusExpired   RuleStatus = "expired"
)

const (
	// OverallCategory is the budget category that matches every expense.
	OverallCategory = "overall"
	// OthersCategory is the classifier fallback label.
	OthersCategory = "Others"
	// RecurringNotePrefix marks expenses materialized from a recurring rule.
	RecurringNotePrefix = "[Recurring] "
)

type (
	// Frequency is both the budget period and the recurrence unit.
	Frequency string

	RuleStatus string

	Expense struct {
		ID       string `json:"id"`
		OwnerID  string `json:"owner_id"`
		Amount   Money  `json:"amount"`
		Category string `json:"category"`
		Date     Date   `json:"date"`
		Method   string `json:"method"`
		Notes    string `json:"notes,omitempty"`
	}

	Budget struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"owner_id"`
		Category  string    `json:"category"`
		Amount    Money     `json:"amount"`
		Period    Frequency `json:"period"`
		StartDate Date      `json:"start_date"`
		EndDate   Date      `json:"end_date"`
	}

	RecurringRule struct {
		ID               string     `json:"id"`
		OwnerID          string     `json:"owner_id"`
		Amount           Money      `json:"amount"`
		Category         string     `json:"category"`
		Method           string     `json:"method"`
		Frequency        Frequency  `json:"frequency"`
		StartDate        Date       `json:"start_date"`
		EndDate          Date       `json:"end_date"`
		Status           RuleStatus `json:"status"`
		Notes            string     `json:"notes,omitempty"`
		NextDueDate      Date       `json:"next_due_date"`
		LastMaterialized Date       `json:"last_materialized"`
	}

	Reminder struct {
		ID       string `json:"id"`
		OwnerID  string `json:"owner_id"`
		Title    string `json:"title"`
		Day      int    `json:"day"`
		Message  string `json:"message"`
		Active   bool   `json:"active"`
		LastSent Date   `json:"last_sent"`
	}

	NotificationPreferences struct {
		OwnerID      string `json:"owner_id"`
		EmailEnabled bool   `json:"email_enabled"`
		SMSEnabled   bool   `json:"sms_enabled"`
	}

	UserProfile struct {
		OwnerID     string `json:"owner_id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name,omitempty"`
	}
)

// IsValid reports whether f is one of the supported units.
func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is a known rule status.
func (s RuleStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further materialization can happen.
func (s RuleStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// CanTransition reports whether a user-driven status change is allowed.
// expired is reached only through a sweep.
func (s RuleStatus) CanTransition(to RuleStatus) bool {
	switch {
	case s.IsTerminal():
		return false
	case to == StatusCancelled:
		return true
	case s == StatusActive && to == StatusPaused, s == StatusPaused && to == StatusActive:
		return true
	case s == to:
		return true
	default:
		return false
	}
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := e.Amount.ValidateNonNegative(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Method) == "" {
		return ErrEmptyMethod
	}
	if len(e.Notes) > 500 {
		return Validationf("notes too long (max 500 characters)")
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Amount.ValidatePositive(); err != nil {
		return err
	}
	if !b.Period.IsValid() {
		return ErrInvalidPeriod
	}
	if err := b.StartDate.Validate(); err != nil {
		return Validationf("invalid start date")
	}
	if !b.EndDate.IsEmpty() && b.EndDate.Before(b.StartDate) {
		return Validationf("end date must not be before start date")
	}
	return nil
}

// IsActiveOn reports whether the budget applies to the given day.
func (b Budget) IsActiveOn(day Date) bool {
	if day.Before(b.StartDate) {
		return false
	}
	return b.EndDate.IsEmpty() || !b.EndDate.Before(day)
}

// Matches reports whether the budget watches the given category.
func (b Budget) Matches(category string) bool {
	return b.Category == category || b.Category == OverallCategory
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := r.Amount.ValidatePositive(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(r.Method) == "" {
		return ErrEmptyMethod
	}
	if !r.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if err := r.StartDate.Validate(); err != nil {
		return Validationf("invalid start date")
	}
	if !r.EndDate.IsEmpty() && r.EndDate.Before(r.StartDate) {
		return Validationf("end date must not be before start date")
	}
	if !r.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if r.Day < 1 || r.Day > 31 {
		return ErrInvalidDay
	}
	return nil
}

// IsDueOn reports whether the reminder fires on day. Reminder days past the
// end of a short month fire on its last day.
func (r Reminder) IsDueOn(day Date) bool {
	if !r.Active {
		return false
	}
	last := DaysIn(day.Year(), day.Time.Month())
	target := r.Day
	if target > last {
		target = last
	}
	return day.Day() == target
}

// DefaultPreferences is what a user gets before saving preferences.
func DefaultPreferences(ownerID string) NotificationPreferences {
	return NotificationPreferences{OwnerID: ownerID, EmailEnabled: true}
}
