// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurrence arithmetic. Each
// frequency (daily, weekly, monthly, yearly) has a Stepper that moves a date
// to the following occurrence; monthly and yearly steps keep the day of
// month anchored to the series start and clamp it in short months.
package services

import (
	"fmt"
	"sync"

	"budgetbuddy/internal/core"
)

// Stepper advances an occurrence date of a series that started on anchor.
type Stepper interface {
	Next(from, anchor core.Date) core.Date
}

// DailyStepper moves one calendar day.
type DailyStepper struct{}

func (DailyStepper) Next(from, _ core.Date) core.Date { return from.AddDays(1) }

// WeeklyStepper moves seven calendar days.
type WeeklyStepper struct{}

func (WeeklyStepper) Next(from, _ core.Date) core.Date { return from.AddDays(7) }

// MonthlyStepper moves one calendar month: Jan 31 -> Feb 29 -> Mar 31.
type MonthlyStepper struct{}

func (MonthlyStepper) Next(from, anchor core.Date) core.Date {
	return core.AddMonthsClamped(from, 1, anchor.Day())
}

// YearlyStepper moves twelve calendar months; a Feb 29 series lands on
// Feb 28 in common years.
type YearlyStepper struct{}

func (YearlyStepper) Next(from, anchor core.Date) core.Date {
	return core.AddMonthsClamped(from, 12, anchor.Day())
}

var (
	steppersMu sync.RWMutex
	steppers   = map[core.Frequency]Stepper{
		core.Daily:   DailyStepper{},
		core.Weekly:  WeeklyStepper{},
		core.Monthly: MonthlyStepper{},
		core.Yearly:  YearlyStepper{},
	}
)

// GetStepper returns the stepper registered for frequency.
func GetStepper(frequency core.Frequency) (Stepper, error) {
	steppersMu.RLock()
	defer steppersMu.RUnlock()
	s, ok := steppers[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return s, nil
}

// RegisterStepper adds or replaces the stepper for a frequency.
func RegisterStepper(frequency core.Frequency, s Stepper) {
	steppersMu.Lock()
	defer steppersMu.Unlock()
	steppers[frequency] = s
}

// NextOccurrenceAfter walks the series that starts at start and returns its
// first occurrence strictly after day.
func NextOccurrenceAfter(frequency core.Frequency, start, day core.Date) (core.Date, error) {
	return nextAfter(frequency, start, start, day)
}

// nextAfter walks from an occurrence already on the series.
func nextAfter(frequency core.Frequency, from, anchor, day core.Date) (core.Date, error) {
	s, err := GetStepper(frequency)
	if err != nil {
		return core.Date{}, err
	}
	next := from
	for !next.After(day) {
		next = s.Next(next, anchor)
	}
	return next, nil
}

// PeriodContaining returns the [start, end] bounds of the period of a series
// anchored at anchor that contains day. Days before anchor fall in the first
// period.
func PeriodContaining(frequency core.Frequency, anchor, day core.Date) (core.Date, core.Date, error) {
	s, err := GetStepper(frequency)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	start := anchor
	next := s.Next(start, anchor)
	for !next.After(day) {
		start = next
		next = s.Next(start, anchor)
	}
	return start, next.AddDays(-1), nil
}
