package model

import "time"

// RevokeReason records why a refresh token was revoked. It is kept for audit
// only; every decision is made on RefreshToken.Revoked.
type RevokeReason string

const (
	RevokeRotated  RevokeReason = "rotated"
	RevokeExpired  RevokeReason = "expired"
	RevokeLogout   RevokeReason = "logout"
	RevokeInactive RevokeReason = "inactive" // owner suspended or deleted
)

// RefreshToken models a row of the `refresh_tokens` table, one link of a
// rotation chain. The raw secret is never stored, only its SHA-256 hex
// digest. Apart from the revocation columns a row is immutable, and Revoked
// moves from false to true at most once.
type RefreshToken struct {
	ID            string       // refresh_tokens.id (UUID)
	UserID        string       // refresh_tokens.user_id
	TokenHash     string       // refresh_tokens.token_hash
	IssuedAt      time.Time    // refresh_tokens.issued_at
	ExpiresAt     time.Time    // refresh_tokens.expires_at
	Revoked       bool         // refresh_tokens.revoked
	RevokedAt     *time.Time   // refresh_tokens.revoked_at
	RevokedReason RevokeReason // refresh_tokens.revoked_reason, empty while active
	ReplacedBy    string       // refresh_tokens.replaced_by, id of the rotated-in token
	UserAgent     string       // refresh_tokens.user_agent
	IP            string       // refresh_tokens.ip
}

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
