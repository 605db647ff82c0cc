// Package common defines shared constants and sentinel errors used across
// client layers of taskkeeper. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Input rejected before it reached storage or the server.
	ErrValidation = errors.New("validation error")

	// Local storage read/write failed.
	ErrPersistence = errors.New("persistence error")

	// A stored value exists but cannot be decoded.
	ErrCorruptData = errors.New("corrupt data")
)

// FieldError describes a single rejected input field. It matches ErrValidation
// with errors.Is.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// NewFieldError is a shorthand for &FieldError{Field: field, Reason: reason}.
func NewFieldError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
