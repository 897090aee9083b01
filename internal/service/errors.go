// Package service provides the business logic for the Hermes user service.
package service

import "errors"

// Common service errors.
var (
	// ErrInternalError indicates a storage or hashing backend failure.
	// The underlying cause is logged but never exposed to callers.
	ErrInternalError = errors.New("internal server error")
)
