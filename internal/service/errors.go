package service

import "errors"

// Errors returned by SessionManager. Each maps to exactly one client-facing
// error code in the transport layer; anything else is reported as ErrInternal.
var (
	ErrValidation         = errors.New("validation error")
	ErrWeakPassword       = errors.New("weak password")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingToken       = errors.New("refresh token missing")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrTokenExpired       = errors.New("token expired")
	ErrNotFound           = errors.New("not found")
	ErrInternal           = errors.New("internal error")
)

// DetailError attaches a client-safe message to one of the sentinels above.
type DetailError struct {
	Kind    error
	Message string
}

func (e *DetailError) Error() string { return e.Message }
func (e *DetailError) Unwrap() error { return e.Kind }

func detail(kind error, msg string) error {
	return &DetailError{Kind: kind, Message: msg}
}
