package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/store"
)

// ReminderProcessor emails the reminders that fall on a given day.
type ReminderProcessor struct {
	reminders  store.ReminderStore
	profiles   store.ProfileStore
	dispatcher notify.Dispatcher
}

func NewReminderProcessor(st store.Store, dispatcher notify.Dispatcher) *ReminderProcessor {
	return &ReminderProcessor{reminders: st, profiles: st, dispatcher: dispatcher}
}

// ProcessDueReminders sends every active reminder due today. A reminder is
// sent only when its owner has saved preferences with email enabled and has
// an email on file. LastSent makes a repeated run on the same day a no-op.
func (p *ReminderProcessor) ProcessDueReminders(ctx context.Context, today core.Date) (SweepResult, error) {
	var res SweepResult

	reminders, err := p.reminders.ListActiveReminders(ctx)
	if err != nil {
		return res, fmt.Errorf("list active reminders: %w", err)
	}

	for _, r := range reminders {
		if !r.IsDueOn(today) {
			continue
		}
		res.Checked++
		if r.LastSent.Equal(today) {
			res.Skipped++
			continue
		}
		p.send(ctx, today, r, &res)
	}

	slog.InfoContext(ctx, "Reminder processing complete",
		"date", today.String(),
		"due", res.Checked,
		"sent", res.Sent,
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, nil
}

func (p *ReminderProcessor) send(ctx context.Context, today core.Date, r core.Reminder, res *SweepResult) {
	prefs, err := p.profiles.GetPreferences(ctx, r.OwnerID)
	if err != nil {
		res.Skipped++
		if !errors.Is(err, core.ErrNotFound) {
			res.diag("reminder %s: preferences: %v", r.ID, err)
		}
		return
	}
	profile, err := p.profiles.GetProfile(ctx, r.OwnerID)
	if err != nil {
		res.Skipped++
		if !errors.Is(err, core.ErrNotFound) {
			res.diag("reminder %s: profile: %v", r.ID, err)
		}
		return
	}

	if prefs.SMSEnabled {
		res.diag("reminder %s: sms requested but no sms channel is configured", r.ID)
	}
	if !prefs.EmailEnabled {
		res.Skipped++
		return
	}
	if strings.TrimSpace(profile.Email) == "" {
		res.Skipped++
		res.diag("reminder %s: no email on file", r.ID)
		return
	}

	// Claim today's send first so a concurrent sweep cannot send it too.
	ok, err := p.reminders.ClaimReminder(ctx, r.ID, r.LastSent, today)
	if err != nil {
		res.Failed++
		res.diag("reminder %s: claim: %v", r.ID, err)
		return
	}
	if !ok {
		res.Skipped++
		return
	}

	if err := p.dispatcher.Dispatch(ctx, notify.ReminderNotice(profile.Email, r)); err != nil {
		res.Failed++
		res.diag("reminder %s: dispatch: %v", r.ID, err)
		slog.ErrorContext(ctx, "Reminder dispatch failed", "reminder_id", r.ID, "error", err)
		if _, rerr := p.reminders.ClaimReminder(ctx, r.ID, today, r.LastSent); rerr != nil {
			res.diag("reminder %s: release claim: %v", r.ID, rerr)
		}
		return
	}
	res.Sent++
}
