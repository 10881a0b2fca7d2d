package services

import (
	"errors"
	"fmt"

	"budgetbuddy/internal/core"
)

// owned hides records of other owners behind the same error a missing
// record produces.
func owned(ownerID, recordOwner, kind, id string) error {
	if ownerID != recordOwner {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

// lookupErr keeps NotFound as is and wraps anything else with context.
func lookupErr(op string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
