package utils // package utils provides helpers for password hashing and token creation

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/authsession/internal/model"
)

var (
	// ErrTokenInvalid covers bad signatures, malformed tokens, wrong
	// issuer/audience and unexpected algorithms.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for a correctly signed token past its exp.
	ErrTokenExpired = errors.New("token expired")
)

const refreshSecretBytes = 32 // 256 bits

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// AccessClaims is the claim set carried by access tokens. Subject holds the
// user id.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 access tokens and mints opaque
// refresh secrets. Now is overridable for tests.
type TokenCodec struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	Now        func() time.Time
}

func NewTokenCodec(secret []byte, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:     secret,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// AccessTTL exposes the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// IssueAccess signs an access token for u with the configured issuer,
// audience and TTL.
func (c *TokenCodec) IssueAccess(u model.User) (AccessToken, error) {
	now := c.Now()
	exp := now.Add(c.accessTTL)
	claims := AccessClaims{
		Email: u.Email,
		Role:  string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccess checks signature, algorithm, issuer, audience and expiry.
// Failures are reported as ErrTokenExpired or ErrTokenInvalid.
func (c *TokenCodec) VerifyAccess(raw string) (*AccessClaims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	claims := &AccessClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// IssueRefreshSecret returns 256 bits of randomness, hex encoded. The secret
// is a bearer capability and is never signed or persisted.
func (c *TokenCodec) IssueRefreshSecret() (string, error) {
	return randomHex(refreshSecretBytes)
}

// RefreshExpiry is the expiry of a refresh token issued at now.
func (c *TokenCodec) RefreshExpiry(now time.Time) time.Time {
	return now.Add(c.refreshTTL)
}

// HashForLookup returns the SHA-256 hex digest stored in place of the raw
// refresh secret.
func HashForLookup(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
