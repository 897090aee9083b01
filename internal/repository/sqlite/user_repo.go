package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/hermes-users/internal/domain"
	"github.com/prn-tf/hermes-users/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, username, first_name, last_name, password_hash, is_active, created_at, updated_at`

// Create inserts a new user and assigns its ID.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (email, username, first_name, last_name, password_hash, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.Username,
		nullString(user.FirstName),
		nullString(user.LastName),
		user.PasswordHash,
		boolToInt(user.IsActive),
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)

	if err != nil {
		if conflict := mapUniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by ID, whether active or not.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "ID")
}

// GetByEmail retrieves a user by exact email match.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email), "email")
}

// GetByUsername retrieves a user by exact username match.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username), "username")
}

// Update persists the full state of an existing user.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = ?, username = ?, first_name = ?, last_name = ?, password_hash = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.Username,
		nullString(user.FirstName),
		nullString(user.LastName),
		user.PasswordHash,
		boolToInt(user.IsActive),
		user.UpdatedAt.Format(time.RFC3339),
		user.ID,
	)

	if err != nil {
		if conflict := mapUniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// Delete permanently removes a user by ID.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// ListActive returns all active users ordered by created_at descending.
func (r *userRepository) ListActive(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = 1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return count > 0, nil
}

// ExistsByUsername checks if a user with the given username exists.
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return count > 0, nil
}

// scanOne scans a single user row, translating no-rows into not-found.
func (r *userRepository) scanOne(row *sql.Row, by string) (*domain.User, error) {
	user, err := scanUser(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", by, err)
	}
	return user, nil
}

// scanUser reads one row's columns into a User. SQLite stores booleans as
// integers and timestamps as RFC3339 strings.
func scanUser(scan func(dest ...interface{}) error) (*domain.User, error) {
	user := &domain.User{}
	var firstName, lastName sql.NullString
	var isActive int
	var createdAt, updatedAt string

	err := scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&firstName,
		&lastName,
		&user.PasswordHash,
		&isActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.FirstName = scanNullString(firstName)
	user.LastName = scanNullString(lastName)
	user.IsActive = isActive != 0
	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return user, nil
}

// boolToInt converts a boolean to an integer (SQLite has no native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullString converts an optional string to its SQL representation.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// scanNullString handles nullable string columns.
func scanNullString(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
