package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHasher() *PasswordHasher {
	return NewPasswordHasher(Argon2Params{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}, nil)
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher()

	hash, err := h.Hash("Str0ngPass!23")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	assert.True(t, h.Verify("Str0ngPass!23", hash))
	assert.False(t, h.Verify("Str0ngPass!24", hash))
	assert.False(t, h.Verify("", hash))
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := testHasher()
	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("OldPassw0rd!"), bcrypt.MinCost)
	require.NoError(t, err)

	h := testHasher()
	assert.True(t, h.Verify("OldPassw0rd!", string(legacy)))
	assert.False(t, h.Verify("wrong", string(legacy)))
}

func TestVerifyMalformedHashReturnsFalse(t *testing.T) {
	h := testHasher()
	for _, stored := range []string{
		"",
		"plaintext",
		"$argon2id$",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$!!!",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=999$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$2b$10$tooshort",
	} {
		assert.NotPanics(t, func() {
			assert.False(t, h.Verify("anything", stored), stored)
		})
	}
}

func TestCheckStrength(t *testing.T) {
	h := testHasher()

	assert.True(t, h.CheckStrength("Str0ngPass!23").Valid)

	cases := map[string]string{
		"":              "required",
		"S0!a":          "too short",
		"str0ngpass!23": "uppercase",
		"STR0NGPASS!23": "lowercase",
		"StrongPass!!!": "digit",
		"Str0ngPass123": "symbol",
	}
	for pw, reason := range cases {
		res := h.CheckStrength(pw)
		assert.False(t, res.Valid, pw)
		assert.Contains(t, res.Reason, reason, pw)
	}

	long := "Aa1!" + strings.Repeat("x", 200)
	assert.False(t, h.CheckStrength(long).Valid)
}

type rejectAll struct{}

func (rejectAll) Check(string) StrengthResult { return StrengthResult{Reason: "nope"} }

func TestCustomPolicy(t *testing.T) {
	h := NewPasswordHasher(DefaultArgon2Params(), rejectAll{})
	res := h.CheckStrength("Str0ngPass!23")
	assert.False(t, res.Valid)
	assert.Equal(t, "nope", res.Reason)
}
