// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotFound        = errors.New("not found")
	ErrInputValidation = errors.New("input validation failed")
	ErrDatabaseError   = errors.New("database error")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrReadOnlyMode    = errors.New("operation blocked: read-only mode enabled")
)

// ValidationError represents malformed mutation input.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Is lets errors.Is match ErrInputValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NotFoundError is returned for an unknown id, or a membership mismatch
// when reordering.
type NotFoundError struct {
	Kind    string
	ID      string
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s not found [%s]: %s", e.Kind, e.ID, e.Message)
	}
	return fmt.Sprintf("%s not found [%s]", e.Kind, e.ID)
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(kind, id, message string) *NotFoundError {
	return &NotFoundError{
		Kind:    kind,
		ID:      id,
		Message: message,
	}
}

// DataError represents a storage-related error.
type DataError struct {
	Entity  string
	ID      string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.Entity, e.ID, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.Entity, e.ID, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrDatabaseError.
func (e *DataError) Is(target error) bool {
	return target == ErrDatabaseError
}

// NewDataError creates a new DataError.
func NewDataError(entity, id, message string, err error) *DataError {
	return &DataError{
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInputValidation)
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
