package core

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors wrap one of these so callers can branch with
// errors.Is without knowing every individual failure.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrTransient    = errors.New("transient failure")
)

var (
	ErrInvalidDay        = fmt.Errorf("%w: invalid day", ErrValidation)
	ErrInvalidMonth      = fmt.Errorf("%w: invalid month", ErrValidation)
	ErrInvalidDate       = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidAmount     = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyCategory     = fmt.Errorf("%w: empty category", ErrValidation)
	ErrEmptyMethod       = fmt.Errorf("%w: empty payment method", ErrValidation)
	ErrInvalidPeriod     = fmt.Errorf("%w: invalid period", ErrValidation)
	ErrInvalidFrequency  = fmt.Errorf("%w: invalid frequency", ErrValidation)
	ErrInvalidStatus     = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)
	ErrEmptyTitle        = fmt.Errorf("%w: empty title", ErrValidation)
	ErrEmptyOwner        = fmt.Errorf("%w: empty owner", ErrValidation)
	ErrNoFields          = fmt.Errorf("%w: no valid fields to update", ErrValidation)
)

// Validationf builds an ad-hoc validation error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
