// Package crypto provides cryptographic utilities for the Hermes user
// service.
package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher produces one-way, salted hashes of credentials.
// The service stores only the hash; no component ever reverses it.
type PasswordHasher interface {
	// Hash returns an opaque hash of the given plaintext.
	Hash(plaintext string) (string, error)
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A cost of 0 selects
// bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. Each call salts independently,
// so hashing the same plaintext twice yields different strings.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Ensure BcryptHasher implements PasswordHasher.
var _ PasswordHasher = (*BcryptHasher)(nil)
