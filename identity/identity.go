// Package identity describes the external identity/session service the
// application authenticates against. The service owns identities and sessions;
// this module only reads them and asks for refresh or sign-out.
package identity

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// MetadataUsername is the user-metadata key carrying the desired display name.
const MetadataUsername = "username"

// Identity is a principal issued by the identity service.
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Username returns the display name requested at sign up, if any.
func (i Identity) Username() string {
	if i.Metadata == nil {
		return ""
	}
	name, _ := i.Metadata[MetadataUsername].(string)
	return name
}

// Session is a time-bounded credential bound to an Identity.
type Session struct {
	Token *oauth2.Token
	User  Identity
}

// ExpiresAt returns the token expiry. The zero time means the service gave none.
func (s *Session) ExpiresAt() time.Time {
	if s == nil || s.Token == nil {
		return time.Time{}
	}
	return s.Token.Expiry
}

// Expired reports whether the session carries an expiry strictly before now.
func (s *Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && exp.Before(now)
}

// UserAttributes are the fields UpdateUser may change. Empty fields are left alone.
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Password string         `json:"password,omitempty"`
	Metadata map[string]any `json:"data,omitempty"`
}

// Service is the contract consumed from the identity backend.
type Service interface {
	GetSession(ctx context.Context) (*Session, error)
	RefreshSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Identity, error)
	SignOut(ctx context.Context) error
	UpdateUser(ctx context.Context, attrs UserAttributes) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	OnAuthStateChange(fn Listener) Subscription
}
