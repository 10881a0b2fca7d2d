package services

import (
	"context"
	"fmt"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

// NewReminder creates an active monthly reminder firing on Day.
type NewReminder struct {
	Title   string `json:"title"`
	Day     int    `json:"day"`
	Message string `json:"message"`
}

type ReminderPatch struct {
	Title   *string `json:"title"`
	Day     *int    `json:"day"`
	Message *string `json:"message"`
	Active  *bool   `json:"active"`
}

func (p ReminderPatch) empty() bool {
	return p.Title == nil && p.Day == nil && p.Message == nil && p.Active == nil
}

type ReminderService struct {
	store store.ReminderStore
	auth  auth.Resolver
}

func NewReminderService(st store.ReminderStore, resolver auth.Resolver) *ReminderService {
	return &ReminderService{store: st, auth: resolver}
}

func (s *ReminderService) CreateReminder(ctx context.Context, token string, in NewReminder) (core.Reminder, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Reminder{}, err
	}
	r := core.Reminder{
		OwnerID: owner,
		Title:   in.Title,
		Day:     in.Day,
		Message: in.Message,
		Active:  true,
	}
	if err := r.Validate(); err != nil {
		return core.Reminder{}, err
	}
	stored, err := s.store.InsertReminder(ctx, r)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("save reminder: %w", err)
	}
	return stored, nil
}

func (s *ReminderService) ListReminders(ctx context.Context, token string) ([]core.Reminder, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListReminders(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return list, nil
}

func (s *ReminderService) get(ctx context.Context, owner, id string) (core.Reminder, error) {
	r, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return core.Reminder{}, lookupErr("get reminder", err)
	}
	if err := owned(owner, r.OwnerID, "reminder", id); err != nil {
		return core.Reminder{}, err
	}
	return r, nil
}

func (s *ReminderService) GetReminder(ctx context.Context, token, id string) (core.Reminder, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Reminder{}, err
	}
	return s.get(ctx, owner, id)
}

func (s *ReminderService) UpdateReminder(ctx context.Context, token, id string, patch ReminderPatch) (core.Reminder, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.Reminder{}, err
	}
	if patch.empty() {
		return core.Reminder{}, core.ErrNoFields
	}
	r, err := s.get(ctx, owner, id)
	if err != nil {
		return core.Reminder{}, err
	}
	if patch.Title != nil {
		r.Title = *patch.Title
	}
	if patch.Day != nil {
		r.Day = *patch.Day
	}
	if patch.Message != nil {
		r.Message = *patch.Message
	}
	if patch.Active != nil {
		r.Active = *patch.Active
	}
	if err := r.Validate(); err != nil {
		return core.Reminder{}, err
	}
	if err := s.store.UpdateReminder(ctx, r); err != nil {
		return core.Reminder{}, lookupErr("update reminder", err)
	}
	updated, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return core.Reminder{}, lookupErr("get reminder", err)
	}
	return updated, nil
}

func (s *ReminderService) DeleteReminder(ctx context.Context, token, id string) error {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.DeleteReminder(ctx, id); err != nil {
		return lookupErr("delete reminder", err)
	}
	return nil
}
