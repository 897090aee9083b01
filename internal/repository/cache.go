// Package repository defines the data access interfaces for the Hermes user
// service.
package repository

import (
	"context"
	"strconv"
	"time"
)

// Cache defines the interface for caching user lookups.
// Implemented by Redis for multi-instance deployments and by an in-process
// map for single-node ones.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// DeleteMulti removes multiple values.
	DeleteMulti(ctx context.Context, keys ...string) error
}

// CacheKey generates cache keys for user lookups.
type CacheKey struct{}

// UserByID returns a cache key for a user record by ID.
func (CacheKey) UserByID(id int64) string {
	return "cache:user:id:" + strconv.FormatInt(id, 10)
}

// UserByEmail returns a cache key for a user record by email.
func (CacheKey) UserByEmail(email string) string {
	return "cache:user:email:" + email
}

// UserByUsername returns a cache key for a user record by username.
func (CacheKey) UserByUsername(username string) string {
	return "cache:user:username:" + username
}
