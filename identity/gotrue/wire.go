package gotrue

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/voter-registration/identity"
	"github.com/jrsteele09/voter-registration/internal/utils"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

type tokenResponse struct {
	AccessToken  string             `json:"access_token"`
	TokenType    string             `json:"token_type"`
	ExpiresIn    int64              `json:"expires_in"`
	ExpiresAt    int64              `json:"expires_at"`
	RefreshToken string             `json:"refresh_token"`
	User         *identity.Identity `json:"user"`
}

// accessClaims are the parts of the access token read when the response omits them.
type accessClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (r tokenResponse) token(now time.Time) *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
	switch {
	case r.ExpiresAt > 0:
		t.Expiry = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		t.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	default:
		if claims, err := parseAccessClaims(r.AccessToken); err == nil && claims.ExpiresAt != nil {
			t.Expiry = claims.ExpiresAt.Time
		}
	}
	return t
}

func (r tokenResponse) session(now time.Time) (*identity.Session, error) {
	if r.AccessToken == "" {
		return nil, errors.New("response has no access token")
	}
	session := &identity.Session{Token: r.token(now)}
	if r.User != nil && r.User.ID != "" {
		session.User = *r.User
		return session, nil
	}

	claims, err := parseAccessClaims(r.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "response has no user and the access token is unreadable")
	}
	session.User = identity.Identity{ID: claims.Subject, Email: claims.Email, Metadata: claims.UserMetadata}
	return session, nil
}

// parseAccessClaims reads the token payload without verifying it. Verification belongs to the identity service.
func parseAccessClaims(raw string) (*accessClaims, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

type errorResponse struct {
	Code             int    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(resp *http.Response) error {
	idErr := &identity.Error{Status: resp.StatusCode}
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var er errorResponse
	if err := json.Unmarshal(payload, &er); err == nil {
		idErr.Code = utils.FirstNonEmpty(er.ErrorCode, er.Error)
		idErr.Message = utils.FirstNonEmpty(er.Msg, er.Message, er.ErrorDescription, er.Error)
	}
	if idErr.Message == "" {
		idErr.Message = http.StatusText(resp.StatusCode)
	}
	return idErr
}
