package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/voter-registration/identity"
	"github.com/jrsteele09/voter-registration/internal/metrics"
	"github.com/jrsteele09/voter-registration/internal/utils"
	"github.com/jrsteele09/voter-registration/users"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Reconcile derives the AuthenticatedUser for session and publishes it. A nil
// result means unauthenticated. Failures are logged and notified, never returned.
//
// The result is published only if no pass that started later has published
// first; the caller always receives the value this pass computed.
func (r *Reconciler) Reconcile(ctx context.Context, session *identity.Session) *AuthenticatedUser {
	seq := r.begin()
	started := time.Now()

	ctx, span := r.tracer.Start(ctx, "auth.Reconcile")
	defer span.End()

	user, outcome, err := r.resolve(ctx, session)
	span.SetAttributes(attribute.String("outcome", outcome))
	if user != nil {
		span.SetAttributes(attribute.String("user.id", user.ID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	r.metrics.RecordPass(outcome, time.Since(started))

	r.publish(seq, user)
	return user
}

func (r *Reconciler) resolve(ctx context.Context, session *identity.Session) (*AuthenticatedUser, string, error) {
	if session == nil {
		return nil, metrics.OutcomeAnonymous, nil
	}

	if session.Expired(r.nowTime()) {
		refreshed, err := r.identity.RefreshSession(ctx)
		if err == nil && refreshed == nil {
			err = identity.ErrSessionMissing
		}
		if err != nil {
			r.logger.Warn().Err(err).Str("user_id", session.User.ID).Msg("expired session could not be refreshed, signing out")
			if signOutErr := r.identity.SignOut(ctx); signOutErr != nil {
				r.logger.Err(signOutErr).Str("user_id", session.User.ID).Msg("forced sign out failed")
			}
			r.notifyError(titleSessionExpired, messageSessionExpired)
			return nil, metrics.OutcomeExpired, errors.Wrap(err, "[Reconciler.resolve] RefreshSession")
		}
		session = refreshed
	}

	profile, temporary, err := r.loadProfile(ctx, session.User)
	if err != nil {
		r.logger.Err(err).Str("user_id", session.User.ID).Msg("could not load user profile")
		r.notifyError(titleProfileUnavailable, messageProfileUnavailable)
		return nil, metrics.OutcomeFailed, err
	}

	registration := r.loadRegistration(ctx, profile.ID)
	user := newAuthenticatedUser(session.User, profile, registration, temporary)

	if temporary {
		return user, metrics.OutcomeTemporary, nil
	}
	return user, metrics.OutcomeAuthenticated, nil
}

// loadProfile returns the stored profile for id, provisioning it when absent.
// The bool reports a temporary in-memory profile.
func (r *Reconciler) loadProfile(ctx context.Context, id identity.Identity) (*users.User, bool, error) {
	profile, err := r.users.GetByID(ctx, id.ID)
	if err == nil && profile == nil {
		err = errors.Wrap(users.ErrNotFound, id.ID)
	}

	switch kind := users.Classify(err); kind {
	case users.KindNone:
		return profile, false, nil
	case users.KindNotFound:
		return r.provision(ctx, id)
	case users.KindTransient, users.KindPermissionDenied:
		// Expected while the identity service is mid-transition; the next pass sees the real row.
		r.logger.Warn().Err(err).Str("user_id", id.ID).Str("kind", kind.String()).Msg("profile fetch failed, using temporary profile")
		return r.temporaryProfile(id), true, nil
	default:
		return nil, false, errors.Wrap(err, "[Reconciler.loadProfile] GetByID")
	}
}

// provision creates the public profile for a first login. Creation is not
// locked; a duplicate key means a concurrent pass won and its row is used.
func (r *Reconciler) provision(ctx context.Context, id identity.Identity) (*users.User, bool, error) {
	profile := users.NewPublicUser(id.ID, id.Email, usernameFor(id), r.nowTime())

	err := r.users.Create(ctx, profile)
	switch kind := users.Classify(err); kind {
	case users.KindNone:
		r.metrics.RecordProvision(metrics.ProvisionCreated)
		r.logger.Info().Str("user_id", id.ID).Msg("provisioned user profile")
		return profile, false, nil
	case users.KindDuplicate:
		r.metrics.RecordProvision(metrics.ProvisionDuplicate)
		existing, err := r.users.GetByID(ctx, id.ID)
		if err != nil {
			return nil, false, errors.Wrap(err, "[Reconciler.provision] GetByID after duplicate")
		}
		if existing == nil {
			return nil, false, errors.Wrap(users.ErrNotFound, "[Reconciler.provision] GetByID after duplicate")
		}
		return existing, false, nil
	case users.KindPermissionDenied:
		r.metrics.RecordProvision(metrics.ProvisionDenied)
		r.logger.Warn().Err(err).Str("user_id", id.ID).Msg("profile creation denied, using temporary profile")
		return r.temporaryProfile(id), true, nil
	default:
		r.metrics.RecordProvision(metrics.ProvisionFailed)
		return nil, false, errors.Wrap(err, "[Reconciler.provision] Create")
	}
}

func (r *Reconciler) temporaryProfile(id identity.Identity) *users.User {
	return users.NewPublicUser(id.ID, id.Email, usernameFor(id), r.nowTime())
}

// loadRegistration never fails the pass; missing data is a normal state.
func (r *Reconciler) loadRegistration(ctx context.Context, userID string) *users.Registration {
	registration, err := r.users.GetRegistration(ctx, userID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("registration lookup failed")
		return nil
	}
	return registration
}

func usernameFor(id identity.Identity) string {
	return utils.FirstNonEmpty(id.Username(), users.DefaultUsername(id.Email))
}

func newAuthenticatedUser(id identity.Identity, profile *users.User, registration *users.Registration, temporary bool) *AuthenticatedUser {
	user := &AuthenticatedUser{
		ID:        profile.ID,
		Email:     utils.FirstNonEmpty(profile.Email, id.Email),
		Username:  profile.Username,
		Role:      profile.Role,
		Temporary: temporary,
	}
	if registration != nil {
		user.RegistrationStatus = utils.NonEmptyPtr(registration.Status)
		user.VoterID = utils.NonEmptyPtr(utils.Value(registration.VoterID))
		user.Precinct = utils.NonEmptyPtr(utils.Value(registration.Precinct))
	}
	return user
}
