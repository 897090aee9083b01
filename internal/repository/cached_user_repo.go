package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/hermes-users/internal/domain"
)

// cachedUserRepository decorates a UserRepository with read-through caching
// of single-record lookups. Cache failures are never fatal: a broken cache
// degrades to direct storage access.
type cachedUserRepository struct {
	inner  UserRepository
	cache  Cache
	ttl    time.Duration
	keys   CacheKey
	logger zerolog.Logger
}

// NewCachedUserRepository wraps inner with a read-through cache.
// Lookups by id, email, and username are cached for ttl; every mutation
// invalidates all keys of the affected record.
func NewCachedUserRepository(inner UserRepository, cache Cache, ttl time.Duration, logger zerolog.Logger) UserRepository {
	return &cachedUserRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "user_cache").Logger(),
	}
}

func (r *cachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	// Nothing cached for a record that doesn't exist yet.
	return r.inner.Create(ctx, user)
}

func (r *cachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.lookup(ctx, r.keys.UserByID(id), func() (*domain.User, error) {
		return r.inner.GetByID(ctx, id)
	})
}

func (r *cachedUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.lookup(ctx, r.keys.UserByEmail(email), func() (*domain.User, error) {
		return r.inner.GetByEmail(ctx, email)
	})
}

func (r *cachedUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.lookup(ctx, r.keys.UserByUsername(username), func() (*domain.User, error) {
		return r.inner.GetByUsername(ctx, username)
	})
}

func (r *cachedUserRepository) Update(ctx context.Context, user *domain.User) error {
	// The record's email or username may be changing, so the previous
	// values need invalidation too.
	prev, err := r.inner.GetByID(ctx, user.ID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	if err := r.inner.Update(ctx, user); err != nil {
		return err
	}

	r.invalidate(ctx, user)
	if prev != nil {
		r.invalidate(ctx, prev)
	}
	return nil
}

func (r *cachedUserRepository) Delete(ctx context.Context, id int64) error {
	prev, err := r.inner.GetByID(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}

	if prev != nil {
		r.invalidate(ctx, prev)
	} else {
		r.deleteKeys(ctx, r.keys.UserByID(id))
	}
	return nil
}

func (r *cachedUserRepository) ListActive(ctx context.Context) ([]*domain.User, error) {
	// Listings are not cached: invalidating them correctly on every
	// mutation costs more than the query.
	return r.inner.ListActive(ctx)
}

func (r *cachedUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.inner.ExistsByEmail(ctx, email)
}

func (r *cachedUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.inner.ExistsByUsername(ctx, username)
}

// lookup returns the cached record for key, falling back to load on miss.
func (r *cachedUserRepository) lookup(ctx context.Context, key string, load func() (*domain.User, error)) (*domain.User, error) {
	if data, err := r.cache.Get(ctx, key); err == nil {
		var entry cachedUser
		if err := json.Unmarshal(data, &entry); err == nil {
			user := entry.User
			user.PasswordHash = entry.PasswordHash
			return &user, nil
		}
		// Corrupt entry: drop it and fall through to storage.
		r.deleteKeys(ctx, key)
	} else if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
	}

	user, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cacheEntry(user)); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}

	return user, nil
}

// invalidate removes all cache keys that can point at user.
func (r *cachedUserRepository) invalidate(ctx context.Context, user *domain.User) {
	r.deleteKeys(ctx,
		r.keys.UserByID(user.ID),
		r.keys.UserByEmail(user.Email),
		r.keys.UserByUsername(user.Username),
	)
}

func (r *cachedUserRepository) deleteKeys(ctx context.Context, keys ...string) {
	if err := r.cache.DeleteMulti(ctx, keys...); err != nil {
		r.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

// cachedUser mirrors domain.User but includes the password hash, which the
// entity deliberately excludes from JSON. The hash must survive the cache
// round trip because GetByEmail/GetByUsername return it to internal callers.
type cachedUser struct {
	domain.User
	PasswordHash string `json:"passwordHash"`
}

func cacheEntry(u *domain.User) *cachedUser {
	return &cachedUser{User: *u, PasswordHash: u.PasswordHash}
}

// Ensure cachedUserRepository implements repository.UserRepository.
var _ UserRepository = (*cachedUserRepository)(nil)
