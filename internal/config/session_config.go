package config

import "time"

type SessionConfig interface {
	GetReconcileDebounce() time.Duration
	GetPasswordUpdateWindow() time.Duration
	GetPasswordResetRedirect() string
	GetPasswordResetInterval() time.Duration
}

type Session struct {
	ReconcileDebounce     time.Duration `env:"RECONCILE_DEBOUNCE" envDefault:"100ms"`
	PasswordUpdateWindow  time.Duration `env:"PASSWORD_UPDATE_WINDOW" envDefault:"3s"`
	PasswordResetRedirect string        `env:"PASSWORD_RESET_REDIRECT" envDefault:"http://localhost:3000/reset-password"`
	PasswordResetInterval time.Duration `env:"PASSWORD_RESET_INTERVAL" envDefault:"60s"`
}

var _ SessionConfig = Session{}

// GetReconcileDebounce is how long auth events are coalesced before a reconciliation pass.
func (s Session) GetReconcileDebounce() time.Duration {
	return s.ReconcileDebounce
}

// GetPasswordUpdateWindow is how long sign-out events are ignored after a password change.
func (s Session) GetPasswordUpdateWindow() time.Duration {
	return s.PasswordUpdateWindow
}

func (s Session) GetPasswordResetRedirect() string {
	return s.PasswordResetRedirect
}

func (s Session) GetPasswordResetInterval() time.Duration {
	return s.PasswordResetInterval
}
