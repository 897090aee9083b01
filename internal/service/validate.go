package service

import (
	"net/mail"

	"github.com/prn-tf/hermes-users/internal/domain"
)

// Validation limits for user input.
const (
	MinUsernameLen = 3
	MinPasswordLen = 6
)

// validateCreateInput checks every field of a create request and reports all
// failures at once.
func validateCreateInput(input CreateUserInput) error {
	verr := &domain.ValidationError{}

	validateEmail(verr, input.Email)
	validateUsername(verr, input.Username)
	if input.Password == "" {
		verr.Add("password", "password is required")
	} else if len(input.Password) < MinPasswordLen {
		verr.Add("password", "password must be at least 6 characters")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// validateUpdateInput checks only the fields present in a partial update.
func validateUpdateInput(update domain.UserUpdate) error {
	verr := &domain.ValidationError{}

	if update.Email != nil {
		validateEmail(verr, *update.Email)
	}
	if update.Username != nil {
		validateUsername(verr, *update.Username)
	}
	if update.Password != nil && len(*update.Password) < MinPasswordLen {
		verr.Add("password", "password must be at least 6 characters")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func validateEmail(verr *domain.ValidationError, email string) {
	if email == "" {
		verr.Add("email", "email is required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		verr.Add("email", "email must be a valid address")
	}
}

func validateUsername(verr *domain.ValidationError, username string) {
	if username == "" {
		verr.Add("username", "username is required")
		return
	}
	if len(username) < MinUsernameLen {
		verr.Add("username", "username must be at least 3 characters")
	}
}
