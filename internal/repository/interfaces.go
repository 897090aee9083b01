// Package repository defines the data access interfaces for the Hermes user
// service. These interfaces abstract database operations, allowing for
// different implementations (PostgreSQL, SQLite, in-memory for testing)
// while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/hermes-users/internal/domain"
)

// UserRepository defines the persistence gateway for user records.
//
// Implementations must enforce UNIQUE(email) and UNIQUE(username) at the
// storage layer and surface violations as domain.ErrEmailTaken,
// domain.ErrUsernameTaken, or domain.ErrUserConflict. The service's
// existence pre-checks are only a fast path; this constraint is the real
// guard against check-then-act races.
type UserRepository interface {
	// Create inserts a new user and assigns its ID.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID, whether active or not.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by exact email match.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByUsername retrieves a user by exact username match.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// Update persists the full state of an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete permanently removes a user by ID.
	Delete(ctx context.Context, id int64) error

	// ListActive returns all active users ordered by created_at descending.
	ListActive(ctx context.Context) ([]*domain.User, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// DatabaseHealth is the interface health checks use to probe the backing
// database regardless of driver.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
