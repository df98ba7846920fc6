package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidDimension is returned when a vector's length doesn't match the store dimension
	ErrInvalidDimension = errors.New("invalid vector dimension")

	// ErrNotFound is returned when an entry is not found
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidVector is returned when vector data is invalid
	ErrInvalidVector = errors.New("invalid vector data")

	// ErrStoreClosed is returned when trying to use a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrDuplicateID is returned when inserting content that already exists in the store
	ErrDuplicateID = errors.New("duplicate entry id")

	// ErrCorruptStore is returned when the file at the store path is not a valid store
	ErrCorruptStore = errors.New("corrupt or incompatible store")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("contextdb: %v", e.Err)
	}
	return fmt.Sprintf("contextdb: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
