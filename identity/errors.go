package identity

import (
	"errors"
	"fmt"
)

// Error is a failure reported by the identity service. Message is safe to show users.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"error_code,omitempty"`
	Message string `json:"msg,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("identity: %s (%d)", e.Message, e.Status)
}

var ErrSessionMissing = &Error{Status: 401, Code: "session_not_found", Message: "Auth session missing"}

// Message extracts the user-facing text from err, falling back to err.Error().
func Message(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) && idErr.Message != "" {
		return idErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
