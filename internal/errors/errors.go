package errors

import "errors"

// Common error types for the voter registration session layer. Their messages
// are shown to the user verbatim.
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrAccountExists      = errors.New("an account with this email already exists")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidUsername    = errors.New("invalid username")

	// Profile errors
	ErrProfileUnavailable = errors.New("user profile unavailable")

	// General errors
	ErrRateLimited = errors.New("too many requests, try again later")
)
