package auth

// Notification titles and messages shown to users.
const (
	titleLoginFailed          = "Login failed"
	titleSignUpFailed         = "Sign up failed"
	titleLogoutFailed         = "Logout failed"
	titleSessionExpired       = "Session expired"
	titleProfileUnavailable   = "Profile unavailable"
	titleProfileUpdateFailed  = "Profile update failed"
	titlePasswordUpdateFailed = "Password update failed"
	titleResetFailed          = "Password reset failed"

	messageSessionExpired     = "Your session has expired. Please sign in again."
	messageProfileUnavailable = "We could not load your profile. Please try again."
	messageWrongPassword      = "Current password is incorrect"
)
