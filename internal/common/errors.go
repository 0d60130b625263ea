package common

import (
	"errors"
	"fmt"
	"strings"
)

// Business logic errors
var (
	// General errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// Entity lookups; each one matches ErrNotFound with errors.Is
var (
	ErrCommentNotFound      = fmt.Errorf("comment: %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification: %w", ErrNotFound)
	ErrGroupChatNotFound    = fmt.Errorf("group chat: %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user: %w", ErrNotFound)
)

// ValidationError carries an actionable message and, optionally, the offending
// fields or ids. It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Message string
	Fields  []string
}

// NewValidationError builds a ValidationError
func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

// Is lets errors.Is(err, ErrInvalidInput) succeed
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
