package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/prn-tf/hermes-users/internal/domain"
)

// Error handling utilities for SQLite.

// isNoRows checks if an error indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// mapUniqueViolation converts a SQLite unique-constraint failure into the
// matching domain conflict error, attributing it to a column when the driver
// message names one. Returns nil if err is not a unique violation.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "UNIQUE constraint failed") &&
		!strings.Contains(errStr, "constraint failed: UNIQUE") {
		return nil
	}
	switch {
	case strings.Contains(errStr, "users.email"):
		return domain.ErrEmailTaken
	case strings.Contains(errStr, "users.username"):
		return domain.ErrUsernameTaken
	default:
		return domain.ErrUserConflict
	}
}
