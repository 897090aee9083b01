package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/hermes-users/internal/domain"
)

// MockUserRepository is a map-backed implementation of repository.UserRepository.
type MockUserRepository struct {
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	getErr    error
	updateErr error
	deleteErr error
	listErr   error
	existsErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}
	user.ID = m.nextID
	m.nextID++
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, exists := m.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, exists := m.users[user.ID]; !exists {
		return domain.ErrUserNotFound
	}
	for _, u := range m.users {
		if u.ID == user.ID {
			continue
		}
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, exists := m.users[id]; !exists {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) ListActive(ctx context.Context) ([]*domain.User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*domain.User
	for _, u := range m.users {
		if u.IsActive {
			clone := *u
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// Seed inserts a user directly, bypassing the service.
func (m *MockUserRepository) Seed(user *domain.User) {
	if user.ID == 0 {
		user.ID = m.nextID
		m.nextID++
	} else if user.ID >= m.nextID {
		m.nextID = user.ID + 1
	}
	clone := *user
	m.users[user.ID] = &clone
}

// fakeHasher avoids bcrypt cost in tests.
type fakeHasher struct {
	hashErr error
}

func (f *fakeHasher) Hash(plaintext string) (string, error) {
	if f.hashErr != nil {
		return "", f.hashErr
	}
	return "hashed:" + plaintext, nil
}

func newTestService(repo *MockUserRepository) *UserService {
	return NewUserService(repo, &fakeHasher{}, zerolog.Nop())
}

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }

// =============================================================================
// Tests
// =============================================================================

func TestUserService_Create(t *testing.T) {
	tests := []struct {
		name      string
		input     CreateUserInput
		wantErr   error
		setupRepo func(*MockUserRepository)
	}{
		{
			name: "success",
			input: CreateUserInput{
				Email:    "alice@example.com",
				Username: "alice",
				Password: "secret1",
			},
			wantErr: nil,
		},
		{
			name: "success with names",
			input: CreateUserInput{
				Email:     "bob@example.com",
				Username:  "bob42",
				Password:  "secret1",
				FirstName: strptr("Bob"),
				LastName:  strptr("Jones"),
			},
			wantErr: nil,
		},
		{
			name: "duplicate email",
			input: CreateUserInput{
				Email:    "taken@example.com",
				Username: "newuser",
				Password: "secret1",
			},
			wantErr: domain.ErrEmailTaken,
			setupRepo: func(m *MockUserRepository) {
				m.Seed(domain.NewUser("taken@example.com", "existing", "hash"))
			},
		},
		{
			name: "duplicate username",
			input: CreateUserInput{
				Email:    "new@example.com",
				Username: "existing",
				Password: "secret1",
			},
			wantErr: domain.ErrUsernameTaken,
			setupRepo: func(m *MockUserRepository) {
				m.Seed(domain.NewUser("taken@example.com", "existing", "hash"))
			},
		},
		{
			name: "inactive user still reserves identity",
			input: CreateUserInput{
				Email:    "gone@example.com",
				Username: "fresh",
				Password: "secret1",
			},
			wantErr: domain.ErrEmailTaken,
			setupRepo: func(m *MockUserRepository) {
				u := domain.NewUser("gone@example.com", "ghost", "hash")
				u.IsActive = false
				m.Seed(u)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			if tt.setupRepo != nil {
				tt.setupRepo(repo)
			}
			svc := newTestService(repo)

			user, err := svc.Create(context.Background(), tt.input)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.ID == 0 {
				t.Error("expected assigned ID")
			}
			if user.Email != tt.input.Email {
				t.Errorf("expected email %s, got %s", tt.input.Email, user.Email)
			}
			if !user.IsActive {
				t.Error("expected new user to be active")
			}
			if user.PasswordHash != "hashed:"+tt.input.Password {
				t.Errorf("expected hashed password, got %s", user.PasswordHash)
			}
			if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
				t.Error("expected timestamps to be set")
			}

			// The stored record must match what was returned.
			stored, err := svc.GetByID(context.Background(), user.ID)
			if err != nil {
				t.Fatalf("get after create failed: %v", err)
			}
			if stored.Email != user.Email || stored.Username != user.Username {
				t.Error("stored record differs from created record")
			}
		})
	}
}

func TestUserService_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      CreateUserInput
		wantFields []string
	}{
		{
			name:       "all fields missing",
			input:      CreateUserInput{},
			wantFields: []string{"email", "username", "password"},
		},
		{
			name: "invalid email",
			input: CreateUserInput{
				Email:    "not-an-email",
				Username: "alice",
				Password: "secret1",
			},
			wantFields: []string{"email"},
		},
		{
			name: "short username and short password",
			input: CreateUserInput{
				Email:    "alice@example.com",
				Username: "al",
				Password: "12345",
			},
			wantFields: []string{"username", "password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(NewMockUserRepository())

			_, err := svc.Create(context.Background(), tt.input)

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Fatalf("expected %d field errors, got %d: %v",
					len(tt.wantFields), len(verr.Fields), verr.Messages())
			}
			for i, field := range tt.wantFields {
				if verr.Fields[i].Field != field {
					t.Errorf("expected field %s at position %d, got %s",
						field, i, verr.Fields[i].Field)
				}
			}
		})
	}
}

func TestUserService_ListActive(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestService(repo)

	first := domain.NewUser("a@example.com", "usera", "hash")
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	repo.Seed(first)

	second := domain.NewUser("b@example.com", "userb", "hash")
	second.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	repo.Seed(second)

	inactive := domain.NewUser("c@example.com", "userc", "hash")
	inactive.IsActive = false
	repo.Seed(inactive)

	users, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("expected 2 active users, got %d", len(users))
	}
	// Ordered newest first.
	if users[0].Username != "userb" || users[1].Username != "usera" {
		t.Errorf("expected [userb, usera], got [%s, %s]", users[0].Username, users[1].Username)
	}
}

func TestUserService_GetBy(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestService(repo)

	seeded := domain.NewUser("alice@example.com", "alice", "hash")
	seeded.IsActive = false // lookups must still find inactive records
	repo.Seed(seeded)

	t.Run("by id", func(t *testing.T) {
		user, err := svc.GetByID(context.Background(), seeded.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Username != "alice" {
			t.Errorf("expected alice, got %s", user.Username)
		}
	})

	t.Run("by id not found", func(t *testing.T) {
		_, err := svc.GetByID(context.Background(), 9999)
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("by email", func(t *testing.T) {
		user, err := svc.GetByEmail(context.Background(), "alice@example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != seeded.ID {
			t.Errorf("expected ID %d, got %d", seeded.ID, user.ID)
		}
	})

	t.Run("by email is case sensitive", func(t *testing.T) {
		_, err := svc.GetByEmail(context.Background(), "ALICE@example.com")
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("by username", func(t *testing.T) {
		user, err := svc.GetByUsername(context.Background(), "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected alice@example.com, got %s", user.Email)
		}
	})

	t.Run("by username not found", func(t *testing.T) {
		_, err := svc.GetByUsername(context.Background(), "nobody")
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestUserService_Update(t *testing.T) {
	tests := []struct {
		name      string
		targetID  int64
		update    domain.UserUpdate
		wantErr   error
		setupRepo func(*MockUserRepository)
		check     func(*testing.T, *domain.User)
	}{
		{
			name:     "change email",
			targetID: 1,
			update:   domain.UserUpdate{Email: strptr("new@example.com")},
			setupRepo: func(m *MockUserRepository) {
				m.Seed(domain.NewUser("old@example.com", "alice", "hash"))
			},
			check: func(t *testing.T, u *domain.User) {
				if u.Email != "new@example.com" {
					t.Errorf("expected new@example.com, got %s", u.Email)
				}
				if u.Username != "alice" {
					t.Errorf("username must be untouched, got %s", u.Username)
				}
			},
		},
		{
			name:     "same email is not a conflict",
			targetID: 1,
			update:   domain.UserUpdate{Email: strptr("alice@example.com")},
			setupRepo: func(m *MockUserRepository) {
				m.Seed(domain.NewUser("alice@example.com", "alice", "hash"))
			},
		},
		{
			name:     "email taken by another user",
			targetID: 1,
			update:   domain.UserUpdate{Email: strptr("bob@example.com")},
			wantErr:  domain.ErrEmailTaken,
			setupRepo: func(m *MockUserRepository) {
				m.Seed(domain.NewUser("alice@example.com", "alice", "hash"))
				m.Seed(domain.NewUser("bob@example.com", "bob", "hash"))
			},
		},
		{
			name:     "username taken by another user",
			targetID: 1,
			update:   domain.UserUpdate{Username: strptr("bob")},
			wantErr:  domain.ErrUsernameTaken,
			setupRepo: func(m *MockUserRepository) {
				m.Seed(domain.NewUser("alice@example.com", "alice", "hash"))
				m.Seed(domain.NewUser("bob@example.com", "bob", "hash"))
			},
		},
		{
			name:     "password is rehashed",
			targetID: 1,
			update:   domain.UserUpdate{Password: strptr("newsecret")},
			setupRepo: func(m *MockUserRepository) {
				m.Seed(domain.NewUser("alice@example.com", "alice", "oldhash"))
			},
			check: func(t *testing.T, u *domain.User) {
				if u.PasswordHash != "hashed:newsecret" {
					t.Errorf("expected rehashed password, got %s", u.PasswordHash)
				}
			},
		},
		{
			name:     "reactivate",
			targetID: 1,
			update:   domain.UserUpdate{IsActive: boolptr(true)},
			setupRepo: func(m *MockUserRepository) {
				u := domain.NewUser("alice@example.com", "alice", "hash")
				u.IsActive = false
				m.Seed(u)
			},
			check: func(t *testing.T, u *domain.User) {
				if !u.IsActive {
					t.Error("expected user to be reactivated")
				}
			},
		},
		{
			name:     "not found",
			targetID: 9999,
			update:   domain.UserUpdate{Email: strptr("new@example.com")},
			wantErr:  domain.ErrUserNotFound,
		},
		{
			name:     "empty update succeeds",
			targetID: 1,
			update:   domain.UserUpdate{},
			setupRepo: func(m *MockUserRepository) {
				m.Seed(domain.NewUser("alice@example.com", "alice", "hash"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			if tt.setupRepo != nil {
				tt.setupRepo(repo)
			}
			svc := newTestService(repo)

			user, err := svc.Update(context.Background(), tt.targetID, tt.update)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, user)
			}
		})
	}
}

func TestUserService_Update_TouchesTimestamp(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestService(repo)

	seeded := domain.NewUser("alice@example.com", "alice", "hash")
	seeded.CreatedAt = time.Now().UTC().Add(-time.Hour)
	seeded.UpdatedAt = seeded.CreatedAt
	repo.Seed(seeded)

	user, err := svc.Update(context.Background(), seeded.ID, domain.UserUpdate{
		FirstName: strptr("Alice"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !user.UpdatedAt.After(seeded.UpdatedAt) {
		t.Error("expected UpdatedAt to advance")
	}
	if !user.CreatedAt.Equal(seeded.CreatedAt) {
		t.Error("CreatedAt must not change on update")
	}
}

func TestUserService_SoftDelete(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestService(repo)

	seeded := domain.NewUser("alice@example.com", "alice", "hash")
	repo.Seed(seeded)

	if err := svc.SoftDelete(context.Background(), seeded.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Gone from the active listing.
	users, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected 0 active users, got %d", len(users))
	}

	// But still reachable by ID.
	user, err := svc.GetByID(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.IsActive {
		t.Error("expected user to be inactive")
	}

	// Idempotent.
	if err := svc.SoftDelete(context.Background(), seeded.ID); err != nil {
		t.Errorf("second soft delete failed: %v", err)
	}

	// Unknown ID still reports not found.
	if err := svc.SoftDelete(context.Background(), 9999); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_HardDelete(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestService(repo)

	seeded := domain.NewUser("alice@example.com", "alice", "hash")
	repo.Seed(seeded)

	if err := svc.HardDelete(context.Background(), seeded.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.GetByID(context.Background(), seeded.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound after hard delete, got %v", err)
	}

	// The identity is free again.
	if _, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "secret1",
	}); err != nil {
		t.Errorf("expected email and username to be reusable, got %v", err)
	}

	// Second delete reports not found.
	if err := svc.HardDelete(context.Background(), seeded.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_RepositoryFailures(t *testing.T) {
	repoErr := errors.New("connection refused")

	t.Run("create", func(t *testing.T) {
		repo := NewMockUserRepository()
		repo.existsErr = repoErr
		svc := newTestService(repo)

		_, err := svc.Create(context.Background(), CreateUserInput{
			Email:    "alice@example.com",
			Username: "alice",
			Password: "secret1",
		})
		if !errors.Is(err, ErrInternalError) {
			t.Errorf("expected ErrInternalError, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		repo := NewMockUserRepository()
		repo.listErr = repoErr
		svc := newTestService(repo)

		if _, err := svc.ListActive(context.Background()); !errors.Is(err, ErrInternalError) {
			t.Errorf("expected ErrInternalError, got %v", err)
		}
	})

	t.Run("hash failure", func(t *testing.T) {
		repo := NewMockUserRepository()
		svc := NewUserService(repo, &fakeHasher{hashErr: errors.New("boom")}, zerolog.Nop())

		_, err := svc.Create(context.Background(), CreateUserInput{
			Email:    "alice@example.com",
			Username: "alice",
			Password: "secret1",
		})
		if !errors.Is(err, ErrInternalError) {
			t.Errorf("expected ErrInternalError, got %v", err)
		}
	})
}

func TestUserService_Create_RaceLostAtStorage(t *testing.T) {
	// The pre-checks pass but the insert itself reports a conflict, as a
	// concurrent writer would cause. The conflict must surface unchanged.
	repo := NewMockUserRepository()
	repo.createErr = domain.ErrEmailTaken
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "secret1",
	})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}
