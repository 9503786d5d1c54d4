package services

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound covers both a missing task and a task owned by someone else.
	ErrTaskNotFound       = errors.New("task not found")
	ErrUserExists         = errors.New("user already exists")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("user or password is incorrect")
	ErrSessionNotFound    = errors.New("session not found")
)

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
