// Package auth keeps the application's view of the signed-in user in step with
// the identity service and the profile store.
//
// A Reconciler owns one published State. Every reconciliation pass fully
// determines the AuthenticatedUser and replaces it atomically. Passes are not
// serialised: two passes may race to provision the same profile, and the
// duplicate-key path resolves that race by re-fetching.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/voter-registration/identity"
	"github.com/jrsteele09/voter-registration/internal/metrics"
	"github.com/jrsteele09/voter-registration/notify"
	"github.com/jrsteele09/voter-registration/routes"
	"github.com/jrsteele09/voter-registration/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	defaultDebounce       = 100 * time.Millisecond
	defaultPasswordWindow = 3 * time.Second
	defaultResetInterval  = 60 * time.Second
	tracerName            = "voterreg/auth"
)

// AuthenticatedUser is the reconciled view of the signed-in user. Values are
// never mutated after publication; each pass publishes a new one.
type AuthenticatedUser struct {
	ID                 string
	Email              string
	Username           string
	Role               users.RoleType
	VoterID            *string
	Precinct           *string
	RegistrationStatus *string
	Temporary          bool // in-memory fallback profile, not persisted
}

// State is the snapshot exposed to the UI.
type State struct {
	IsAuthenticated bool
	User            *AuthenticatedUser
	IsLoading       bool
}

// Navigator moves the UI between routes.
type Navigator interface {
	Location() string
	Navigate(path string)
}

// Dependencies holds the collaborators a Reconciler requires.
type Dependencies struct {
	Identity  identity.Service // Identity/session backend
	Users     users.UserRepo   // Profile and applicant store
	Notifier  notify.Notifier  // User-facing toasts
	Navigator Navigator        // Route changes from the guard and operations
}

// Reconciler maps identity sessions onto application users and publishes the result.
type Reconciler struct {
	identity  identity.Service
	users     users.UserRepo
	notifier  notify.Notifier
	navigator Navigator
	validator *Validator

	policy         routes.Policy
	logger         zerolog.Logger
	metrics        *metrics.Collector
	tracer         trace.Tracer
	limiter        *rate.Limiter
	resetRedirect  string
	debounce       time.Duration
	passwordWindow time.Duration
	nowTime        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	lock          sync.Mutex
	state         State
	seq           uint64    // last sequence handed out
	published     uint64    // sequence of the current state
	passwordUntil time.Time // password-update flow is active while now is before this
	pending       *identity.Session
	timer         *time.Timer
	timerGen      uint64
	listeners     map[int]func(State)
	nextListener  int
	subscription  identity.Subscription
	started       bool
	closed        bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *Reconciler) {
		r.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithDebounce sets how long bursts of auth events are coalesced before one pass runs.
func WithDebounce(d time.Duration) Option {
	return func(r *Reconciler) {
		r.debounce = d
	}
}

// WithPasswordUpdateWindow sets how long a password change suppresses sign-out events and error toasts.
func WithPasswordUpdateWindow(d time.Duration) Option {
	return func(r *Reconciler) {
		r.passwordWindow = d
	}
}

func WithRoutePolicy(policy routes.Policy) Option {
	return func(r *Reconciler) {
		r.policy = policy
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(r *Reconciler) {
		r.metrics = c
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Reconciler) {
		r.tracer = tracer
	}
}

// WithResetRedirect sets the link target embedded in password reset emails.
func WithResetRedirect(url string) Option {
	return func(r *Reconciler) {
		r.resetRedirect = url
	}
}

// WithResetLimiter replaces the password reset limiter. A nil limiter disables limiting.
func WithResetLimiter(limiter *rate.Limiter) Option {
	return func(r *Reconciler) {
		r.limiter = limiter
	}
}

// NewReconciler initializes a Reconciler with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewReconciler(deps Dependencies, options ...Option) (*Reconciler, error) {
	// Validate required parameters
	if deps.Identity == nil {
		return nil, errors.New("[NewReconciler] Identity service is required")
	}
	if deps.Users == nil {
		return nil, errors.New("[NewReconciler] Users repo is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("[NewReconciler] Notifier is required")
	}
	if deps.Navigator == nil {
		return nil, errors.New("[NewReconciler] Navigator is required")
	}

	r := &Reconciler{
		identity:       deps.Identity,
		users:          deps.Users,
		notifier:       deps.Notifier,
		navigator:      deps.Navigator,
		validator:      NewValidator(),
		policy:         routes.DefaultPolicy(),
		logger:         log.Logger,
		tracer:         otel.Tracer(tracerName),
		limiter:        rate.NewLimiter(rate.Every(defaultResetInterval), 1),
		debounce:       defaultDebounce,
		passwordWindow: defaultPasswordWindow,
		nowTime:        time.Now,
		state:          State{IsLoading: true},
		listeners:      make(map[int]func(State)),
	}

	// Apply optional configuration
	for _, opt := range options {
		opt(r)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r, nil
}

// Start subscribes to auth-state changes, reconciles the stored session and
// ends the loading phase. It is a no-op after the first call.
func (r *Reconciler) Start(ctx context.Context) {
	r.lock.Lock()
	if r.started || r.closed {
		r.lock.Unlock()
		return
	}
	r.started = true
	r.lock.Unlock()

	sub := r.identity.OnAuthStateChange(r.handleEvent)
	r.lock.Lock()
	r.subscription = sub
	r.lock.Unlock()

	session, err := r.identity.GetSession(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("could not restore session")
		session = nil
	}
	r.Reconcile(ctx, session)

	r.lock.Lock()
	r.state.IsLoading = false
	state := r.state
	fns := r.listenerSnapshot()
	r.lock.Unlock()

	for _, fn := range fns {
		fn(state)
	}
	r.guard(state)
}

// Close releases the auth-state subscription and drops any pending pass.
func (r *Reconciler) Close() {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return
	}
	r.closed = true
	r.stopTimer()
	sub := r.subscription
	r.subscription = nil
	r.lock.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	r.cancel()
}

// State returns the latest published snapshot.
func (r *Reconciler) State() State {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state
}

// OnChange registers fn to run after every state change, outside the reconciler lock.
func (r *Reconciler) OnChange(fn func(State)) (cancel func()) {
	r.lock.Lock()
	defer r.lock.Unlock()
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.lock.Lock()
			defer r.lock.Unlock()
			delete(r.listeners, id)
		})
	}
}

// begin hands out the sequence number that orders a pass against later ones.
func (r *Reconciler) begin() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.seq++
	return r.seq
}

// publish replaces the state unless a newer pass or clear has already published.
func (r *Reconciler) publish(seq uint64, user *AuthenticatedUser) bool {
	r.lock.Lock()
	if seq <= r.published {
		r.lock.Unlock()
		r.logger.Debug().Uint64("seq", seq).Msg("dropping stale reconciliation result")
		return false
	}
	r.published = seq
	r.state.User = user
	r.state.IsAuthenticated = user != nil
	state := r.state
	fns := r.listenerSnapshot()
	r.lock.Unlock()

	for _, fn := range fns {
		fn(state)
	}
	if !state.IsLoading {
		r.guard(state)
	}
	return true
}

// clear publishes the signed-out state and drops any pending pass.
func (r *Reconciler) clear() {
	r.lock.Lock()
	r.stopTimer()
	r.lock.Unlock()
	r.publish(r.begin(), nil)
}

// Caller holds the lock.
func (r *Reconciler) listenerSnapshot() []func(State) {
	fns := make([]func(State), 0, len(r.listeners))
	for i := 0; i < r.nextListener; i++ {
		if fn, ok := r.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

func (r *Reconciler) guard(state State) {
	var role users.RoleType
	if state.User != nil {
		role = state.User.Role
	}
	location := r.navigator.Location()
	if target, ok := r.policy.Redirect(location, role, state.IsAuthenticated); ok {
		r.logger.Debug().Str("from", location).Str("to", target).Msg("route guard redirect")
		r.navigator.Navigate(target)
	}
}

// notifyError shows an error toast unless a password-update flow is in progress.
func (r *Reconciler) notifyError(title, message string) {
	if r.inPasswordFlow() {
		r.logger.Debug().Str("title", title).Str("message", message).Msg("notification suppressed during password update")
		return
	}
	r.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: title, Message: message})
}

func (r *Reconciler) notifySuccess(title, message string) {
	r.notifier.Notify(notify.Notification{Level: notify.LevelSuccess, Title: title, Message: message})
}

// notifyFailure shows a genuine operation failure. These are never suppressed.
func (r *Reconciler) notifyFailure(title, message string) {
	r.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: title, Message: message})
}
