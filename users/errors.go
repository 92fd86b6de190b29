package users

import "errors"

// ErrorKind is the closed set of store failures the session layer reacts to.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNotFound
	KindDuplicate
	KindPermissionDenied
	KindTransient
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindPermissionDenied:
		return "permission_denied"
	case KindTransient:
		return "transient"
	default:
		return "other"
	}
}

// Stores wrap one of these so callers can classify without inspecting messages.
var (
	ErrNotFound         = errors.New("profile not found")
	ErrDuplicate        = errors.New("profile already exists")
	ErrPermissionDenied = errors.New("profile access denied by policy")
	ErrTransient        = errors.New("profile store temporarily unavailable")
)

// Classify maps a store error onto its ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicate):
		return KindDuplicate
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindOther
	}
}
