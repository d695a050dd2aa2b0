package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for missing or malformed input. It indicates a
	// programming error on the caller's side rather than a user-facing condition.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Required returns an ErrValidation-wrapping error when any of the named
// fields is empty. Fields are checked in order.
func Required(fields ...Field) error {
	for _, f := range fields {
		if f.Value == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, f.Name)
		}
	}
	return nil
}

// Field pairs an input name with its value for Required.
type Field struct {
	Name  string
	Value string
}
