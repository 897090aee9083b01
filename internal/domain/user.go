// Package domain contains the core business entities for the Hermes user
// service. These are pure Go structs with no external dependencies.
package domain

import (
	"time"
)

// User represents a registered user record.
type User struct {
	// ID is the unique identifier for the user (storage-assigned, immutable).
	ID int64 `json:"id"`

	// Email is the unique email address for the user.
	// Comparisons are case-sensitive byte equality.
	Email string `json:"email"`

	// Username is the unique username for the user.
	// Constraints: at least 3 characters.
	Username string `json:"username"`

	// FirstName is the user's optional first name.
	FirstName *string `json:"firstName,omitempty"`

	// LastName is the user's optional last name.
	LastName *string `json:"lastName,omitempty"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This never appears in API responses; the cleartext is never stored.
	PasswordHash string `json:"-"`

	// IsActive indicates whether the record is active. Soft deletion flips
	// this to false without removing the record.
	IsActive bool `json:"isActive"`

	// CreatedAt is the timestamp when the user was created. Set once.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp of the last mutation.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser creates a new User with default values: active, with both audit
// timestamps set to the current instant.
func NewUser(email, username, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Touch refreshes the UpdatedAt timestamp.
func (u *User) Touch() {
	u.UpdatedAt = time.Now().UTC()
}

// UserUpdate is a partial update to a user record. Nil fields are left
// untouched; Password, when present, must be hashed before it reaches the
// persistence gateway.
type UserUpdate struct {
	Email     *string `json:"email,omitempty"`
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Password  *string `json:"password,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
}

// Empty reports whether the update carries no fields at all.
func (p *UserUpdate) Empty() bool {
	return p.Email == nil && p.Username == nil && p.FirstName == nil &&
		p.LastName == nil && p.Password == nil && p.IsActive == nil
}
