package spaced_repetition

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned (wrapped in *InvalidInputError) when the state
// handed to the updater is missing or outside its documented range.
// Use errors.Is to check: errors.Is(err, spaced_repetition.ErrInvalidInput)
var ErrInvalidInput = errors.New("spaced_repetition: invalid input")

// InvalidInputError describes which part of the input was rejected.
type InvalidInputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Reason == "missing" {
		return fmt.Sprintf("spaced_repetition: %s is missing", e.Field)
	}
	return fmt.Sprintf("spaced_repetition: %s %v %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}
