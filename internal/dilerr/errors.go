// Package dilerr holds the error classes shared by every layer.
//
// Errors are wrapped with fmt.Errorf("...: %w", err) as they travel up and
// classified with errors.Is at the edges (HTTP handlers, CLI).
package dilerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the input was rejected and nothing was persisted.
	ErrValidation = errors.New("validation failed")
	// ErrIntegrity means a referential rule was broken; the transaction is aborted.
	ErrIntegrity = errors.New("integrity violation")
	// ErrIDExhausted means no free identifier was found within the attempt cap.
	ErrIDExhausted = errors.New("identifier space exhausted")
)

// Validation wraps a formatted message as a validation error.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Integrity wraps a formatted message as an integrity error.
func Integrity(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}

// NotFound wraps a formatted message as a not-found error.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
