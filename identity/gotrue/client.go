// Package gotrue talks to a GoTrue-compatible identity REST API (the auth
// service behind Supabase). The client holds the current session in memory,
// persists it through a SessionStore, and emits auth-state events the way the
// browser SDK does.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/voter-registration/identity"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 10 * time.Second

var _ identity.Service = (*Client)(nil)

// Client implements identity.Service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	store      SessionStore
	nowTime    func() time.Time
	events     *identity.Broadcaster

	mu      sync.Mutex
	session *identity.Session
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSessionStore persists the session between process runs.
func WithSessionStore(store SessionStore) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// New creates a client for the API rooted at baseURL (e.g. https://xyz.supabase.co/auth/v1).
// A session found in the store is restored but not validated.
func New(baseURL, apiKey string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[gotrue.New] baseURL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrap(err, "[gotrue.New] invalid baseURL")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		store:      noopStore{},
		nowTime:    time.Now,
		events:     identity.NewBroadcaster(),
	}
	for _, opt := range options {
		opt(c)
	}

	session, err := c.store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "[gotrue.New] store.Load")
	}
	c.session = session
	return c, nil
}

func (c *Client) GetSession(ctx context.Context) (*identity.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, nil
}

func (c *Client) RefreshSession(ctx context.Context) (*identity.Session, error) {
	current, _ := c.GetSession(ctx)
	if current == nil || current.Token == nil || current.Token.RefreshToken == "" {
		return nil, identity.ErrSessionMissing
	}

	var resp tokenResponse
	body := map[string]string{"refresh_token": current.Token.RefreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", nil, body, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.RefreshSession] token")
	}

	session, err := resp.session(c.nowTime())
	if err != nil {
		return nil, errors.Wrap(err, "[Client.RefreshSession] decode session")
	}
	c.setSession(session)
	c.events.Emit(identity.EventTokenRefreshed, session)
	return session, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", nil, body, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.SignInWithPassword] token")
	}

	session, err := resp.session(c.nowTime())
	if err != nil {
		return nil, errors.Wrap(err, "[Client.SignInWithPassword] decode session")
	}
	c.setSession(session)
	c.events.Emit(identity.EventSignedIn, session)
	return session, nil
}

// SignUp creates an account. When the service auto-confirms, the returned session is adopted and SIGNED_IN is emitted.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*identity.Identity, error) {
	var raw json.RawMessage
	body := signUpRequest{Email: email, Password: password, Data: metadata}
	if err := c.do(ctx, http.MethodPost, "/signup", nil, body, &raw); err != nil {
		return nil, errors.Wrap(err, "[Client.SignUp] signup")
	}

	var resp tokenResponse
	if err := json.Unmarshal(raw, &resp); err == nil && resp.AccessToken != "" {
		session, err := resp.session(c.nowTime())
		if err != nil {
			return nil, errors.Wrap(err, "[Client.SignUp] decode session")
		}
		c.setSession(session)
		c.events.Emit(identity.EventSignedIn, session)
		return &session.User, nil
	}

	var user identity.Identity
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.SignUp] decode user")
	}
	return &user, nil
}

// SignOut revokes the session remotely. The local session is cleared even when the
// service no longer knows it.
func (c *Client) SignOut(ctx context.Context) error {
	current, _ := c.GetSession(ctx)
	if current != nil && current.Token != nil {
		err := c.do(ctx, http.MethodPost, "/logout", current, nil, nil)
		var idErr *identity.Error
		if err != nil && !(errors.As(err, &idErr) && (idErr.Status == http.StatusUnauthorized || idErr.Status == http.StatusNotFound)) {
			return errors.Wrap(err, "[Client.SignOut] logout")
		}
	}
	c.setSession(nil)
	c.events.Emit(identity.EventSignedOut, nil)
	return nil
}

func (c *Client) UpdateUser(ctx context.Context, attrs identity.UserAttributes) error {
	current, _ := c.GetSession(ctx)
	if current == nil {
		return identity.ErrSessionMissing
	}

	var user identity.Identity
	if err := c.do(ctx, http.MethodPut, "/user", current, attrs, &user); err != nil {
		return errors.Wrap(err, "[Client.UpdateUser] user")
	}

	updated := &identity.Session{Token: current.Token, User: user}
	c.setSession(updated)
	c.events.Emit(identity.EventUserUpdated, updated)
	return nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"email": email}, nil); err != nil {
		return errors.Wrap(err, "[Client.ResetPasswordForEmail] recover")
	}
	return nil
}

func (c *Client) OnAuthStateChange(fn identity.Listener) identity.Subscription {
	return c.events.Subscribe(fn)
}

// ExchangeRecovery adopts the session carried by a password-reset link and emits PASSWORD_RECOVERY.
func (c *Client) ExchangeRecovery(ctx context.Context, accessToken, refreshToken string) (*identity.Session, error) {
	probe := &identity.Session{}
	resp := tokenResponse{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "bearer"}
	probe.Token = resp.token(c.nowTime())

	var user identity.Identity
	if err := c.do(ctx, http.MethodGet, "/user", probe, nil, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.ExchangeRecovery] user")
	}
	session := &identity.Session{Token: probe.Token, User: user}
	c.setSession(session)
	c.events.Emit(identity.EventPasswordRecovery, session)
	return session, nil
}

func (c *Client) setSession(session *identity.Session) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	var err error
	if session == nil {
		err = c.store.Clear()
	} else {
		err = c.store.Save(session)
	}
	if err != nil {
		log.Err(err).Msg("Failed to persist identity session")
	}
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, auth *identity.Session, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if auth != nil && auth.Token != nil {
		auth.Token.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
