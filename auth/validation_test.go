package auth_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/voter-registration/auth"
	apperrors "github.com/jrsteele09/voter-registration/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateEmail(t *testing.T) {
	v := auth.NewValidator()

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.ValidateEmail("jane.doe@example.com"))
	})

	t.Run("trims whitespace", func(t *testing.T) {
		require.NoError(t, v.ValidateEmail("  jane@example.org "))
	})

	t.Run("dotless domain", func(t *testing.T) {
		require.NoError(t, v.ValidateEmail("admin@localhost"))
	})

	for _, email := range []string{"", "jane", "@example.com", "jane@.example.com", "jane@example.com.", "ja ne@example.com", "a@b@example.com", "Jane <jane@example.com>"} {
		t.Run("invalid "+email, func(t *testing.T) {
			err := v.ValidateEmail(email)
			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrInvalidEmail)
		})
	}
}

func TestValidator_ValidateUsername(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateUsername("jane_doe-1.x"))

	err := v.ValidateUsername("jd")
	require.ErrorIs(t, err, apperrors.ErrInvalidUsername)
	require.Contains(t, err.Error(), "between 3 and 32")

	err = v.ValidateUsername(strings.Repeat("a", 33))
	require.ErrorIs(t, err, apperrors.ErrInvalidUsername)

	err = v.ValidateUsername("jane doe")
	require.ErrorIs(t, err, apperrors.ErrInvalidUsername)
	require.Contains(t, err.Error(), "' ' is not allowed")
}

func TestValidator_ValidateUserCredentials(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateUserCredentials("jane@example.com", "x"))

	err := v.ValidateUserCredentials("jane@example.com", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.Contains(t, err.Error(), "password is required")

	err = v.ValidateUserCredentials("", "Password1")
	require.ErrorIs(t, err, apperrors.ErrInvalidEmail)
}

func TestValidator_ValidatePasswordChange(t *testing.T) {
	v := auth.NewValidator()

	t.Run("valid change", func(t *testing.T) {
		require.NoError(t, v.ValidatePasswordChange("OldPassword1", "NewPassword1"))
	})

	t.Run("reset flow without old password", func(t *testing.T) {
		require.NoError(t, v.ValidatePasswordChange("", "NewPassword1"))
	})

	t.Run("weak password", func(t *testing.T) {
		err := v.ValidatePasswordChange("OldPassword1", "short")
		require.ErrorIs(t, err, apperrors.ErrWeakPassword)
		require.Contains(t, err.Error(), "at least 8 characters")
	})

	t.Run("unchanged password", func(t *testing.T) {
		err := v.ValidatePasswordChange("SamePassword1", "SamePassword1")
		require.ErrorIs(t, err, apperrors.ErrWeakPassword)
		require.Contains(t, err.Error(), "must differ")
	})
}

func TestValidator_ValidateSignUp(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateSignUp("jane", "jane@example.com", "Password123"))
	require.ErrorIs(t, v.ValidateSignUp("j", "jane@example.com", "Password123"), apperrors.ErrInvalidUsername)
	require.ErrorIs(t, v.ValidateSignUp("jane", "jane", "Password123"), apperrors.ErrInvalidEmail)
	require.ErrorIs(t, v.ValidateSignUp("jane", "jane@example.com", "password"), apperrors.ErrWeakPassword)
}
