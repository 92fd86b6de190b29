package auth

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/voter-registration/identity"
	apperrors "github.com/jrsteele09/voter-registration/internal/errors"
	"golang.org/x/time/rate"
)

// UpdateUserPassword changes the password of the current user. A non-empty
// oldPassword is verified by signing in with it first; an empty one is the
// reset-link flow where the recovery session already proves ownership.
//
// The identity service cycles sign-out and sign-in while rotating credentials,
// so the password-update flow window is entered before the change is requested.
func (r *Reconciler) UpdateUserPassword(ctx context.Context, oldPassword, newPassword string) bool {
	if err := r.validator.ValidatePasswordChange(oldPassword, newPassword); err != nil {
		r.notifyFailure(titlePasswordUpdateFailed, err.Error())
		return false
	}

	if oldPassword != "" {
		user := r.State().User
		if user == nil {
			r.notifyFailure(titlePasswordUpdateFailed, apperrors.ErrNotAuthenticated.Error())
			return false
		}
		if _, err := r.identity.SignInWithPassword(ctx, user.Email, oldPassword); err != nil {
			r.logger.Info().Err(err).Str("user_id", user.ID).Msg("password re-authentication failed")
			r.notifyFailure(titlePasswordUpdateFailed, messageWrongPassword)
			return false
		}
	}

	r.enterPasswordFlow()
	if err := r.identity.UpdateUser(ctx, identity.UserAttributes{Password: newPassword}); err != nil {
		r.leavePasswordFlow()
		r.logger.Err(err).Msg("password update failed")
		r.notifyFailure(titlePasswordUpdateFailed, identity.Message(err))
		return false
	}

	r.notifySuccess("Password updated", "Your password has been changed.")
	return true
}

// SendPasswordResetEmail asks the identity service to email a reset link.
func (r *Reconciler) SendPasswordResetEmail(ctx context.Context, email string) bool {
	email = strings.TrimSpace(email)
	if err := r.validator.ValidateEmail(email); err != nil {
		r.notifyFailure(titleResetFailed, err.Error())
		return false
	}
	if !r.resetAvailable() {
		r.notifyFailure(titleResetFailed, apperrors.ErrRateLimited.Error())
		return false
	}

	if err := r.identity.ResetPasswordForEmail(ctx, email, r.resetRedirect); err != nil {
		r.logger.Warn().Err(err).Str("email", email).Msg("password reset request failed")
		r.notifyFailure(titleResetFailed, identity.Message(err))
		return false
	}

	// Only a sent email counts against the limit.
	if r.limiter != nil {
		r.limiter.Allow()
	}
	r.notifySuccess("Password reset email sent", "Check your inbox for a link to reset your password.")
	return true
}

// resetAvailable reports whether the limiter would allow a reset email now
// without consuming its token.
func (r *Reconciler) resetAvailable() bool {
	if r.limiter == nil || r.limiter.Limit() == rate.Inf {
		return true
	}
	return r.limiter.Tokens() >= 1
}

// enterPasswordFlow opens or extends the window. A fresher update always wins
// because only the later deadline is kept.
func (r *Reconciler) enterPasswordFlow() {
	r.lock.Lock()
	defer r.lock.Unlock()
	until := r.nowTime().Add(r.passwordWindow)
	if until.After(r.passwordUntil) {
		r.passwordUntil = until
	}
}

func (r *Reconciler) leavePasswordFlow() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.passwordUntil = time.Time{}
}

func (r *Reconciler) inPasswordFlow() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.nowTime().Before(r.passwordUntil)
}
