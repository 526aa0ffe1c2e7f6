package utils

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authsession/internal/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testCodec(now time.Time) *TokenCodec {
	c := NewTokenCodec(testSecret, "authsession", "web", 15*time.Minute, 7*24*time.Hour)
	c.Now = func() time.Time { return now }
	return c
}

var alice = model.User{ID: "3f1c0d2e-8f5b-4c9a-9c57-1b2f9f0f6a11", Email: "alice@example.com", Role: model.RoleUser}

func TestIssueAndVerifyAccess(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(now)

	tok, err := c.IssueAccess(alice)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), tok.Exp)

	claims, err := c.VerifyAccess(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.Subject)
	assert.Equal(t, alice.Email, claims.Email)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "authsession", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"web"}, claims.Audience)
}

func TestVerifyAccessExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(now)
	tok, err := c.IssueAccess(alice)
	require.NoError(t, err)

	c.Now = func() time.Time { return now.Add(14 * time.Minute) }
	_, err = c.VerifyAccess(tok.Token)
	require.NoError(t, err)

	c.Now = func() time.Time { return now.Add(16 * time.Minute) }
	_, err = c.VerifyAccess(tok.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccessRejects(t *testing.T) {
	now := time.Now().UTC()
	c := testCodec(now)
	tok, err := c.IssueAccess(alice)
	require.NoError(t, err)

	otherKey := NewTokenCodec([]byte("ffffffffffffffffffffffffffffffff"), "authsession", "web", time.Minute, time.Hour)
	wrongIssuer := NewTokenCodec(testSecret, "someone-else", "web", time.Minute, time.Hour)
	wrongAudience := NewTokenCodec(testSecret, "authsession", "mobile", time.Minute, time.Hour)

	for name, verify := range map[string]func() error{
		"empty":          func() error { _, err := c.VerifyAccess(""); return err },
		"garbage":        func() error { _, err := c.VerifyAccess("not.a.jwt"); return err },
		"tampered":       func() error { _, err := c.VerifyAccess(tok.Token + "x"); return err },
		"other key":      func() error { _, err := otherKey.VerifyAccess(tok.Token); return err },
		"wrong issuer":   func() error { _, err := wrongIssuer.VerifyAccess(tok.Token); return err },
		"wrong audience": func() error { _, err := wrongAudience.VerifyAccess(tok.Token); return err },
	} {
		assert.ErrorIs(t, verify(), ErrTokenInvalid, name)
	}
}

func TestVerifyAccessRejectsNoneAlgorithm(t *testing.T) {
	c := testCodec(time.Now().UTC())
	claims := AccessClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   alice.ID,
			Issuer:    "authsession",
			Audience:  jwt.ClaimStrings{"web"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.VerifyAccess(raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshSecretAndLookupHash(t *testing.T) {
	c := testCodec(time.Now().UTC())

	a, err := c.IssueRefreshSecret()
	require.NoError(t, err)
	b, err := c.IssueRefreshSecret()
	require.NoError(t, err)

	raw, err := hex.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.NotEqual(t, a, b)

	h := HashForLookup(a)
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashForLookup(a))
	assert.NotEqual(t, h, HashForLookup(b))
	assert.False(t, strings.Contains(h, a))
}

func TestRefreshExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := testCodec(now)
	assert.Equal(t, now.Add(7*24*time.Hour), c.RefreshExpiry(now))
}
