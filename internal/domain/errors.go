// Package domain contains the core business entities for the Hermes user
// service.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken indicates another user already holds the email.
	ErrEmailTaken = errors.New("email already exists")

	// ErrUsernameTaken indicates another user already holds the username.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrUserConflict indicates a uniqueness violation where the storage
	// layer could not attribute the conflict to a specific column.
	ErrUserConflict = errors.New("user already exists")
)

// IsConflict reports whether err is one of the uniqueness-violation errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrUserConflict)
}

// FieldError describes a single failing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every failing field of an input, so a caller can
// identify all problems in one round trip.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Messages returns the per-field messages in input order.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return msgs
}
