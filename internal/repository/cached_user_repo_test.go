package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/hermes-users/internal/domain"
)

// countingUserRepository tracks how many calls reach the inner store.
type countingUserRepository struct {
	users map[int64]*domain.User
	calls map[string]int
}

func newCountingUserRepository() *countingUserRepository {
	return &countingUserRepository{
		users: make(map[int64]*domain.User),
		calls: make(map[string]int),
	}
}

func (s *countingUserRepository) Create(ctx context.Context, user *domain.User) error {
	s.calls["Create"]++
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *countingUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	s.calls["GetByID"]++
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *countingUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.calls["GetByEmail"]++
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *countingUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.calls["GetByUsername"]++
	for _, u := range s.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *countingUserRepository) Update(ctx context.Context, user *domain.User) error {
	s.calls["Update"]++
	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *countingUserRepository) Delete(ctx context.Context, id int64) error {
	s.calls["Delete"]++
	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *countingUserRepository) ListActive(ctx context.Context) ([]*domain.User, error) {
	s.calls["ListActive"]++
	var result []*domain.User
	for _, u := range s.users {
		if u.IsActive {
			clone := *u
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (s *countingUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.calls["ExistsByEmail"]++
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *countingUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	s.calls["ExistsByUsername"]++
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// mapCache is a minimal Cache for tests, without the memory package's
// cleanup goroutine.
type mapCache struct {
	mu     sync.Mutex
	items  map[string][]byte
	getErr error
	setErr error
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string][]byte)}
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	data, ok := c.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return data, nil
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.items[key] = value
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *mapCache) DeleteMulti(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.items, key)
	}
	return nil
}

func seedUser(t *testing.T, store *countingUserRepository) *domain.User {
	t.Helper()
	user := domain.NewUser("alice@example.com", "alice", "bcrypt-hash")
	user.ID = 1
	store.users[user.ID] = user
	clone := *user
	return &clone
}

func TestCachedUserRepository_ReadThrough(t *testing.T) {
	store := newCountingUserRepository()
	seeded := seedUser(t, store)
	cache := newMapCache()
	repo := NewCachedUserRepository(store, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	// First read misses the cache and hits storage.
	user, err := repo.GetByID(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls["GetByID"] != 1 {
		t.Errorf("expected 1 storage read, got %d", store.calls["GetByID"])
	}

	// Second read is served from cache.
	user, err = repo.GetByID(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls["GetByID"] != 1 {
		t.Errorf("expected cached read, storage reads: %d", store.calls["GetByID"])
	}
	if user.Email != seeded.Email {
		t.Errorf("expected email %s, got %s", seeded.Email, user.Email)
	}
	// The password hash must survive the cache round trip even though the
	// entity excludes it from JSON.
	if user.PasswordHash != seeded.PasswordHash {
		t.Errorf("expected password hash to survive caching, got %q", user.PasswordHash)
	}
}

func TestCachedUserRepository_LookupKeysAreIndependent(t *testing.T) {
	store := newCountingUserRepository()
	seeded := seedUser(t, store)
	cache := newMapCache()
	repo := NewCachedUserRepository(store, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	if _, err := repo.GetByEmail(ctx, seeded.Email); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.GetByEmail(ctx, seeded.Email); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls["GetByEmail"] != 1 {
		t.Errorf("expected 1 storage read by email, got %d", store.calls["GetByEmail"])
	}

	// A by-username lookup has its own key and misses.
	if _, err := repo.GetByUsername(ctx, seeded.Username); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls["GetByUsername"] != 1 {
		t.Errorf("expected 1 storage read by username, got %d", store.calls["GetByUsername"])
	}
}

func TestCachedUserRepository_UpdateInvalidatesOldKeys(t *testing.T) {
	store := newCountingUserRepository()
	seeded := seedUser(t, store)
	cache := newMapCache()
	repo := NewCachedUserRepository(store, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	// Warm the cache under the old email.
	if _, err := repo.GetByEmail(ctx, seeded.Email); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated := *seeded
	updated.Email = "renamed@example.com"
	if err := repo.Update(ctx, &updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The stale by-email entry must be gone.
	if _, err := repo.GetByEmail(ctx, seeded.Email); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for old email, got %v", err)
	}

	user, err := repo.GetByEmail(ctx, updated.Email)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != updated.Email {
		t.Errorf("expected %s, got %s", updated.Email, user.Email)
	}
}

func TestCachedUserRepository_DeleteInvalidates(t *testing.T) {
	store := newCountingUserRepository()
	seeded := seedUser(t, store)
	cache := newMapCache()
	repo := NewCachedUserRepository(store, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, seeded.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.Delete(ctx, seeded.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := repo.GetByID(ctx, seeded.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound after delete, got %v", err)
	}
}

func TestCachedUserRepository_DegradesOnCacheFailure(t *testing.T) {
	store := newCountingUserRepository()
	seeded := seedUser(t, store)
	cache := newMapCache()
	cache.getErr = ErrCacheUnavailable
	cache.setErr = ErrCacheUnavailable
	repo := NewCachedUserRepository(store, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	// Reads keep working straight from storage.
	for i := 0; i < 2; i++ {
		user, err := repo.GetByID(ctx, seeded.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Username != seeded.Username {
			t.Errorf("expected %s, got %s", seeded.Username, user.Username)
		}
	}
	if store.calls["GetByID"] != 2 {
		t.Errorf("expected 2 storage reads, got %d", store.calls["GetByID"])
	}
}
