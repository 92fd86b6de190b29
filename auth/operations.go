package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/voter-registration/identity"
	apperrors "github.com/jrsteele09/voter-registration/internal/errors"
	"github.com/jrsteele09/voter-registration/routes"
	"github.com/jrsteele09/voter-registration/users"
)

// Login signs in with a password, reconciles the new session and navigates to
// the role's landing route. On failure the state is left unauthenticated.
func (r *Reconciler) Login(ctx context.Context, email, password string) {
	email = strings.TrimSpace(email)
	if err := r.validator.ValidateUserCredentials(email, password); err != nil {
		r.notifyFailure(titleLoginFailed, err.Error())
		return
	}

	session, err := r.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		r.logger.Info().Err(err).Str("email", email).Msg("sign in failed")
		r.notifyFailure(titleLoginFailed, identity.Message(err))
		return
	}

	user := r.Reconcile(ctx, session)
	if user == nil {
		return
	}
	r.notifySuccess("Welcome back", user.Username)
	r.navigator.Navigate(r.policy.Landing(user.Role))
}

// SignUp requests a new account. The profile row is provisioned on first
// reconciliation from the username carried in identity metadata.
func (r *Reconciler) SignUp(ctx context.Context, username, email, password string) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := r.validator.ValidateSignUp(username, email, password); err != nil {
		r.notifyFailure(titleSignUpFailed, err.Error())
		return
	}

	existing, err := r.users.GetByEmail(ctx, email)
	switch kind := users.Classify(err); {
	case kind == users.KindNone && existing != nil:
		r.notifyFailure(titleSignUpFailed, apperrors.ErrAccountExists.Error())
		return
	case kind != users.KindNone && kind != users.KindNotFound:
		// The identity service still rejects duplicates; carry on.
		r.logger.Warn().Err(err).Str("email", email).Msg("duplicate account check failed")
	}

	metadata := map[string]any{identity.MetadataUsername: username}
	if _, err := r.identity.SignUp(ctx, email, password, metadata); err != nil {
		r.logger.Info().Err(err).Str("email", email).Msg("sign up failed")
		r.notifyFailure(titleSignUpFailed, identity.Message(err))
		return
	}
	r.notifySuccess("Account created", "Check your email to confirm your account.")
}

// Logout signs out, clears the user and returns to the entry route.
func (r *Reconciler) Logout(ctx context.Context) {
	if err := r.identity.SignOut(ctx); err != nil {
		r.logger.Err(err).Msg("sign out failed")
		r.notifyFailure(titleLogoutFailed, identity.Message(err))
	}
	r.clear()
	r.navigator.Navigate(routes.Entry)
}

// UpdateUserProfile stores a new username for the current user, then
// refreshes the published state. A nil username only refreshes.
func (r *Reconciler) UpdateUserProfile(ctx context.Context, username *string) bool {
	user := r.State().User
	if user == nil {
		r.notifyFailure(titleProfileUpdateFailed, apperrors.ErrNotAuthenticated.Error())
		return false
	}

	if username != nil {
		name := strings.TrimSpace(*username)
		if err := r.validator.ValidateUsername(name); err != nil {
			r.notifyFailure(titleProfileUpdateFailed, err.Error())
			return false
		}
		if err := r.users.UpdateUsername(ctx, user.ID, name); err != nil {
			r.logger.Err(err).Str("user_id", user.ID).Msg("username update failed")
			r.notifyFailure(titleProfileUpdateFailed, apperrors.ErrProfileUnavailable.Error())
			return false
		}
	}

	if r.refreshUser(ctx) == nil {
		r.notifyFailure(titleProfileUpdateFailed, apperrors.ErrProfileUnavailable.Error())
		return false
	}
	r.notifySuccess("Profile updated", "")
	return true
}

// RefreshUser reconciles the current session, refreshing it when it cannot be read.
func (r *Reconciler) RefreshUser(ctx context.Context) {
	r.refreshUser(ctx)
}

func (r *Reconciler) refreshUser(ctx context.Context) *AuthenticatedUser {
	session, err := r.identity.GetSession(ctx)
	if err != nil || session == nil {
		if err != nil {
			r.logger.Debug().Err(err).Msg("get session failed, refreshing")
		}
		session, err = r.identity.RefreshSession(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("session refresh failed")
			session = nil
		}
	}
	return r.Reconcile(ctx, session)
}
