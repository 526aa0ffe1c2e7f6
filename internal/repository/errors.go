// Package repository persists users and refresh tokens. The sentinel errors
// below are shared by the MySQL repositories and the in-memory store so the
// service layer can classify failures with errors.Is regardless of backend.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when the unique email constraint rejects an
// insert.
var ErrEmailExists = errors.New("email already exists")

// ErrAlreadyRevoked is returned by a rotation whose conditional revoke lost
// the race: another caller revoked the token first, and nothing was written.
var ErrAlreadyRevoked = errors.New("refresh token already revoked")
