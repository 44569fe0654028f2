package pricing

import (
	"errors"
	"fmt"
)

// ErrRuleNotFound is returned when a rule id does not exist or belongs
// to a different owner. The two cases are deliberately
// indistinguishable so that existence never leaks across owners.
var ErrRuleNotFound = errors.New("markup rule not found")

// ValidationError signals a malformed rule definition or pricing
// request. Field names the offending input so callers can render
// field-level messages. Never retried.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ComputationError signals pathologically large arithmetic input. It
// is surfaced rather than clamped; the only deliberate clamp in the
// engine is the negative-unit-price clamp in the calculator.
type ComputationError struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed in %s: %s", e.Op, e.Reason)
}
