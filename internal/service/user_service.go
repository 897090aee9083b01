// Package service provides the business logic for the Hermes user service.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/hermes-users/internal/domain"
	"github.com/prn-tf/hermes-users/internal/pkg/crypto"
	"github.com/prn-tf/hermes-users/internal/repository"
)

// UserService enforces every business invariant around user records. It is
// the only component permitted to call the persistence gateway or the
// password hasher; both transports delegate here.
type UserService struct {
	userRepo repository.UserRepository
	hasher   crypto.PasswordHasher
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, hasher crypto.PasswordHasher, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// CreateUserInput contains the data needed to create a new user.
type CreateUserInput struct {
	Email     string
	Username  string
	Password  string
	FirstName *string
	LastName  *string
}

// Create creates a new user record: validates the input, rejects duplicate
// email or username, hashes the password, and inserts an active record.
// The existence checks are a fast path; the storage layer's unique
// constraints decide races, and the repositories surface those violations as
// the same conflict errors the pre-checks produce.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, domain.ErrEmailTaken
	}

	exists, err = s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to check username existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, domain.ErrUsernameTaken
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(input.Email, input.Username, passwordHash)
	user.FirstName = input.FirstName
	user.LastName = input.LastName

	if err := s.userRepo.Create(ctx, user); err != nil {
		if domain.IsConflict(err) {
			// Lost a check-then-act race; same outcome as the pre-check.
			return nil, err
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("user created")

	return user, nil
}

// ListActive returns all active users, most recently created first.
// An empty result is not an error.
func (s *UserService) ListActive(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.ListActive(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return users, nil
}

// GetByID retrieves a user by ID. Soft-deleted records are reachable here;
// only the active listing filters them out.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by exact email match. The returned record
// includes the password hash for internal callers; anything exposing it
// externally must strip the hash itself.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("email", email).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// GetByUsername retrieves a user by exact username match. Same hash caveat
// as GetByEmail.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("username", username).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// Update applies a partial update: only the fields present change. A changed
// email or username is checked for uniqueness first; a present password is
// hashed before persisting. Reactivation via the isActive field is allowed.
func (s *UserService) Update(ctx context.Context, id int64, update domain.UserUpdate) (*domain.User, error) {
	if err := validateUpdateInput(update); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to fetch user for update")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if update.Email != nil && *update.Email != user.Email {
		exists, err := s.userRepo.ExistsByEmail(ctx, *update.Email)
		if err != nil {
			s.logger.Error().Err(err).Str("email", *update.Email).Msg("failed to check email existence")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if exists {
			return nil, domain.ErrEmailTaken
		}
		user.Email = *update.Email
	}

	if update.Username != nil && *update.Username != user.Username {
		exists, err := s.userRepo.ExistsByUsername(ctx, *update.Username)
		if err != nil {
			s.logger.Error().Err(err).Str("username", *update.Username).Msg("failed to check username existence")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if exists {
			return nil, domain.ErrUsernameTaken
		}
		user.Username = *update.Username
	}

	if update.Password != nil {
		passwordHash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to hash password")
			return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
		}
		user.PasswordHash = passwordHash
	}

	if update.FirstName != nil {
		user.FirstName = update.FirstName
	}
	if update.LastName != nil {
		user.LastName = update.LastName
	}
	if update.IsActive != nil {
		user.IsActive = *update.IsActive
	}

	user.Touch()

	if err := s.userRepo.Update(ctx, user); err != nil {
		if domain.IsConflict(err) || errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to update user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user updated")
	return user, nil
}

// SoftDelete marks a user inactive. The record stays retrievable by ID and
// by email/username lookups but drops out of the active listing. Calling it
// on an already-inactive user succeeds.
func (s *UserService) SoftDelete(ctx context.Context, id int64) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to fetch user for soft delete")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user.IsActive = false
	user.Touch()

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to soft delete user")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", id).Msg("user deactivated")
	return nil
}

// HardDelete permanently removes a user. Irreversible: the ID is never
// reused, and the email and username become available again.
func (s *UserService) HardDelete(ctx context.Context, id int64) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to hard delete user")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", id).Msg("user permanently deleted")
	return nil
}
