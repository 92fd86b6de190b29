package auth

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	apperrors "github.com/jrsteele09/voter-registration/internal/errors"
	"github.com/jrsteele09/voter-registration/users"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
)

// Validator provides centralized validation of user input to the session operations.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUserCredentials validates login credentials
func (v *Validator) ValidateUserCredentials(email, password string) error {
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", apperrors.ErrInvalidCredentials)
	}
	return nil
}

// ValidateEmail accepts a bare RFC 5322 address. Deliverability is left to the
// identity service.
func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", apperrors.ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return apperrors.ErrInvalidEmail
	}
	return nil
}

// ValidateUsername accepts letters, digits, dot, dash and underscore.
func (v *Validator) ValidateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return fmt.Errorf("%w: must be between %d and %d characters", apperrors.ErrInvalidUsername, minUsernameLength, maxUsernameLength)
	}
	for _, c := range username {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '.' || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("%w: %q is not allowed", apperrors.ErrInvalidUsername, c)
	}
	return nil
}

// ValidatePassword checks the new password meets the strength rules.
func (v *Validator) ValidatePassword(password string) error {
	if err := users.ValidatePasswordStrength(password); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrWeakPassword, err.Error())
	}
	return nil
}

// ValidateSignUp validates a new account request
func (v *Validator) ValidateSignUp(username, email, password string) error {
	if err := v.ValidateUsername(username); err != nil {
		return err
	}
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	return v.ValidatePassword(password)
}

// ValidatePasswordChange validates a password change. An empty old password is the reset-link flow.
func (v *Validator) ValidatePasswordChange(oldPassword, newPassword string) error {
	if err := v.ValidatePassword(newPassword); err != nil {
		return err
	}
	if oldPassword != "" && oldPassword == newPassword {
		return fmt.Errorf("%w: new password must differ from the current one", apperrors.ErrWeakPassword)
	}
	return nil
}
