package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/store"
)

// ProfileService manages the contact details and notification switches
// used by budget alerts and reminders.
type ProfileService struct {
	store store.ProfileStore
	auth  auth.Resolver
}

func NewProfileService(st store.ProfileStore, resolver auth.Resolver) *ProfileService {
	return &ProfileService{store: st, auth: resolver}
}

func (s *ProfileService) GetProfile(ctx context.Context, token string) (core.UserProfile, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.UserProfile{}, err
	}
	p, err := s.store.GetProfile(ctx, owner)
	if err != nil {
		return core.UserProfile{}, lookupErr("get profile", err)
	}
	return p, nil
}

// PutProfile replaces the caller's profile. An empty email clears it.
func (s *ProfileService) PutProfile(ctx context.Context, token string, p core.UserProfile) (core.UserProfile, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.UserProfile{}, err
	}
	p.OwnerID = owner
	p.Email = strings.TrimSpace(p.Email)
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return core.UserProfile{}, core.Validationf("invalid email %q", p.Email)
		}
	}
	if err := s.store.PutProfile(ctx, p); err != nil {
		return core.UserProfile{}, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

// GetPreferences returns the saved preferences, or the defaults when the
// caller never saved any.
func (s *ProfileService) GetPreferences(ctx context.Context, token string) (core.NotificationPreferences, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.NotificationPreferences{}, err
	}
	prefs, err := s.store.GetPreferences(ctx, owner)
	if errors.Is(err, core.ErrNotFound) {
		return core.DefaultPreferences(owner), nil
	}
	if err != nil {
		return core.NotificationPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return prefs, nil
}

func (s *ProfileService) SetPreferences(ctx context.Context, token string, prefs core.NotificationPreferences) (core.NotificationPreferences, error) {
	owner, err := s.auth.Resolve(ctx, token)
	if err != nil {
		return core.NotificationPreferences{}, err
	}
	prefs.OwnerID = owner
	if err := s.store.PutPreferences(ctx, prefs); err != nil {
		return core.NotificationPreferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return prefs, nil
}
