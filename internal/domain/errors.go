package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before it reaches a store.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateUser is returned when registering a username that already exists.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrInvalidCredentials indicates an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMalformedRecord marks a single line that could not be decoded.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrIO wraps failures of the underlying storage other than file absence.
	ErrIO = errors.New("storage i/o failure")
	// ErrNotAuthenticated is returned by task operations outside a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTaskNotFound is returned when a task id is not part of the session.
	ErrTaskNotFound = errors.New("task not found")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IOFailure wraps err as an ErrIO for the given operation and path.
func IOFailure(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
