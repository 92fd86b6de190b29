package fakeidentity

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/voter-registration/identity"
	"github.com/jrsteele09/voter-registration/users"
	"golang.org/x/oauth2"
)

var _ identity.Service = (*FakeIdentityService)(nil)

// Operation names a service method for error injection and call counting.
type Operation string

const (
	OpGetSession         Operation = "GetSession"
	OpRefreshSession     Operation = "RefreshSession"
	OpSignInWithPassword Operation = "SignInWithPassword"
	OpSignUp             Operation = "SignUp"
	OpSignOut            Operation = "SignOut"
	OpUpdateUser         Operation = "UpdateUser"
	OpResetPassword      Operation = "ResetPasswordForEmail"
)

var ErrInvalidCredentials = &identity.Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}

type account struct {
	identity     identity.Identity
	passwordHash string
}

// ResetRequest records a password reset email that would have been sent.
type ResetRequest struct {
	Email      string
	RedirectTo string
}

// FakeIdentityService is an in-memory identity service. It keeps one current
// session, as a browser client does, and emits auth events for each change.
type FakeIdentityService struct {
	accounts map[string]*account // lower-cased email to account
	session  *identity.Session
	failures map[Operation][]error
	calls    map[Operation]int
	resets   []ResetRequest
	events   *identity.Broadcaster
	tokenTTL time.Duration
	nowTime  func() time.Time
	lock     sync.Mutex

	// RotateOnPasswordChange makes UpdateUser with a password emit SIGNED_OUT then SIGNED_IN after USER_UPDATED.
	RotateOnPasswordChange bool
}

func NewFakeIdentityService() *FakeIdentityService {
	return &FakeIdentityService{
		accounts: make(map[string]*account),
		failures: make(map[Operation][]error),
		calls:    make(map[Operation]int),
		events:   identity.NewBroadcaster(),
		tokenTTL: time.Hour,
		nowTime:  time.Now,
	}
}

// SetNowTime overrides the clock used for token expiry.
func (s *FakeIdentityService) SetNowTime(now func() time.Time) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.nowTime = now
}

// AddAccount registers an account directly and returns its identity.
func (s *FakeIdentityService) AddAccount(email, password string, metadata map[string]any) (identity.Identity, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return identity.Identity{}, err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	id := identity.Identity{ID: uuid.New().String(), Email: email, Metadata: metadata}
	s.accounts[strings.ToLower(email)] = &account{identity: id, passwordHash: hash}
	return id, nil
}

// SetSession replaces the current session without emitting an event.
func (s *FakeIdentityService) SetSession(session *identity.Session) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.session = session
}

// NewSession issues a session for id expiring ttl from now. A negative ttl gives an expired session.
func (s *FakeIdentityService) NewSession(id identity.Identity, ttl time.Duration) *identity.Session {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.issue(id, ttl)
}

// Emit delivers an event to subscribers as if the service produced it.
func (s *FakeIdentityService) Emit(event identity.Event, session *identity.Session) {
	s.events.Emit(event, session)
}

// Subscribers returns the number of live auth-state subscriptions.
func (s *FakeIdentityService) Subscribers() int {
	return s.events.Len()
}

func (s *FakeIdentityService) FailNext(op Operation, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

func (s *FakeIdentityService) Calls(op Operation) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls[op]
}

// Resets returns the password reset requests received so far.
func (s *FakeIdentityService) Resets() []ResetRequest {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]ResetRequest(nil), s.resets...)
}

// CheckPassword reports whether password is current for email.
func (s *FakeIdentityService) CheckPassword(email, password string) bool {
	s.lock.Lock()
	acc, ok := s.accounts[strings.ToLower(email)]
	s.lock.Unlock()
	return ok && users.CheckPasswordHash(password, acc.passwordHash)
}

// begin counts the call and pops a queued failure. Caller holds the lock.
func (s *FakeIdentityService) begin(op Operation) error {
	s.calls[op]++
	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (s *FakeIdentityService) issue(id identity.Identity, ttl time.Duration) *identity.Session {
	return &identity.Session{
		Token: &oauth2.Token{
			AccessToken:  uuid.New().String(),
			TokenType:    "bearer",
			RefreshToken: uuid.New().String(),
			Expiry:       s.nowTime().Add(ttl),
		},
		User: id,
	}
}

func (s *FakeIdentityService) GetSession(ctx context.Context) (*identity.Session, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.begin(OpGetSession); err != nil {
		return nil, err
	}
	return s.session, nil
}

func (s *FakeIdentityService) RefreshSession(ctx context.Context) (*identity.Session, error) {
	s.lock.Lock()
	if err := s.begin(OpRefreshSession); err != nil {
		s.lock.Unlock()
		return nil, err
	}
	if s.session == nil {
		s.lock.Unlock()
		return nil, identity.ErrSessionMissing
	}
	s.session = s.issue(s.session.User, s.tokenTTL)
	session := s.session
	s.lock.Unlock()

	s.events.Emit(identity.EventTokenRefreshed, session)
	return session, nil
}

func (s *FakeIdentityService) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	s.lock.Lock()
	if err := s.begin(OpSignInWithPassword); err != nil {
		s.lock.Unlock()
		return nil, err
	}
	acc, ok := s.accounts[strings.ToLower(email)]
	if !ok || !users.CheckPasswordHash(password, acc.passwordHash) {
		s.lock.Unlock()
		return nil, ErrInvalidCredentials
	}
	s.session = s.issue(acc.identity, s.tokenTTL)
	session := s.session
	s.lock.Unlock()

	s.events.Emit(identity.EventSignedIn, session)
	return session, nil
}

func (s *FakeIdentityService) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*identity.Identity, error) {
	s.lock.Lock()
	err := s.begin(OpSignUp)
	_, exists := s.accounts[strings.ToLower(email)]
	s.lock.Unlock()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &identity.Error{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}
	id, err := s.AddAccount(email, password, metadata)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *FakeIdentityService) SignOut(ctx context.Context) error {
	s.lock.Lock()
	if err := s.begin(OpSignOut); err != nil {
		s.lock.Unlock()
		return err
	}
	s.session = nil
	s.lock.Unlock()

	s.events.Emit(identity.EventSignedOut, nil)
	return nil
}

func (s *FakeIdentityService) UpdateUser(ctx context.Context, attrs identity.UserAttributes) error {
	s.lock.Lock()
	if err := s.begin(OpUpdateUser); err != nil {
		s.lock.Unlock()
		return err
	}
	if s.session == nil {
		s.lock.Unlock()
		return identity.ErrSessionMissing
	}
	acc, ok := s.accounts[strings.ToLower(s.session.User.Email)]
	if !ok {
		s.lock.Unlock()
		return &identity.Error{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
	}
	if attrs.Password != "" {
		hash, err := users.HashPassword(attrs.Password)
		if err != nil {
			s.lock.Unlock()
			return err
		}
		acc.passwordHash = hash
	}
	for k, v := range attrs.Metadata {
		if acc.identity.Metadata == nil {
			acc.identity.Metadata = make(map[string]any)
		}
		acc.identity.Metadata[k] = v
	}
	s.session = s.issue(acc.identity, s.tokenTTL)
	session := s.session
	rotate := s.RotateOnPasswordChange && attrs.Password != ""
	s.lock.Unlock()

	s.events.Emit(identity.EventUserUpdated, session)
	if rotate {
		s.events.Emit(identity.EventSignedOut, nil)
		s.events.Emit(identity.EventSignedIn, session)
	}
	return nil
}

func (s *FakeIdentityService) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.begin(OpResetPassword); err != nil {
		return err
	}
	s.resets = append(s.resets, ResetRequest{Email: email, RedirectTo: redirectTo})
	return nil
}

func (s *FakeIdentityService) OnAuthStateChange(fn identity.Listener) identity.Subscription {
	return s.events.Subscribe(fn)
}
