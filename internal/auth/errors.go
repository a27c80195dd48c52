package auth

import (
	"errors"
	"strings"
)

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrTokenInvalid   = errors.New("auth: token invalid")
	ErrTokenExpired   = errors.New("auth: token expired")

	ErrUnauthenticated  = errors.New("auth: unauthenticated")
	ErrForbidden        = errors.New("auth: forbidden")
	ErrSessionNotFound  = errors.New("auth: session not found")
	ErrStoreUnavailable = errors.New("auth: store unavailable")
)

// Reasons carried by UnauthenticatedError.
const (
	ReasonMissingCredential = "missing credential"
	ReasonInvalidCredential = "invalid credential"
	ReasonSessionNotFound   = "session not found"
)

// UnauthenticatedError reports why a credential was rejected. It matches
// ErrUnauthenticated and unwraps to the underlying token or session error.
type UnauthenticatedError struct {
	Reason string
	Err    error
}

func (e *UnauthenticatedError) Error() string {
	if e.Err == nil {
		return "auth: unauthenticated: " + e.Reason
	}
	return "auth: unauthenticated: " + e.Reason + ": " + e.Err.Error()
}

func (e *UnauthenticatedError) Is(target error) bool { return target == ErrUnauthenticated }

func (e *UnauthenticatedError) Unwrap() error { return e.Err }

func unauthenticated(reason string, err error) error {
	return &UnauthenticatedError{Reason: reason, Err: err}
}

// DenyError is returned when a principal's role is outside the allowed set.
type DenyError struct {
	Role    string
	Allowed []string
}

func (e *DenyError) Error() string {
	return "auth: forbidden: role " + quoteRole(e.Role) + " not in [" + strings.Join(e.Allowed, ",") + "]"
}

func (e *DenyError) Is(target error) bool { return target == ErrForbidden }

func quoteRole(role string) string {
	if role == "" {
		return `""`
	}
	return role
}
