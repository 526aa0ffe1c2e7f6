package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authsession/internal/response"
	"github.com/iliyamo/authsession/internal/service"
	"github.com/iliyamo/authsession/internal/utils"
)

// stubVerifier accepts "good" and "admin" and reports "old" as expired.
type stubVerifier struct{}

func (stubVerifier) VerifyAccess(token string) (*utils.AccessClaims, error) {
	switch token {
	case "good":
		return &utils.AccessClaims{Role: "user", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}}, nil
	case "admin":
		return &utils.AccessClaims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2"}}, nil
	case "old":
		return nil, service.ErrTokenExpired
	default:
		return nil, service.ErrInvalidToken
	}
}

func serve(t *testing.T, h echo.HandlerFunc, authHeader string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	var env response.Envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestJWTAuth(t *testing.T) {
	var seen string
	h := JWTAuth(stubVerifier{})(func(c echo.Context) error {
		seen = UserID(c)
		assert.NotNil(t, Claims(c))
		return c.NoContent(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"no header", "", http.StatusUnauthorized, response.CodeUnauthorized},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, response.CodeUnauthorized},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, response.CodeUnauthorized},
		{"invalid", "Bearer forged", http.StatusUnauthorized, response.CodeInvalidToken},
		{"expired", "Bearer old", http.StatusUnauthorized, response.CodeInvalidToken},
		{"valid", "Bearer good", http.StatusNoContent, ""},
		{"lower-case scheme", "bearer good", http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			rec, env := serve(t, h, tc.header)
			assert.Equal(t, tc.status, rec.Code)
			if tc.code == "" {
				assert.Equal(t, "u-1", seen)
				return
			}
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
			assert.Empty(t, seen)
		})
	}
}

func TestJWTAuthExpiredMessage(t *testing.T) {
	h := JWTAuth(stubVerifier{})(func(c echo.Context) error { return nil })
	_, env := serve(t, h, "Bearer old")
	require.NotNil(t, env.Error)
	assert.Equal(t, "Access token expired", env.Error.Message)
}

func TestRequireRole(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	adminOnly := JWTAuth(stubVerifier{})(RequireRole("admin")(ok))

	rec, env := serve(t, adminOnly, "Bearer good")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.CodeForbidden, env.Error.Code)

	rec, _ = serve(t, adminOnly, "Bearer admin")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// without JWTAuth there is no role to check
	rec, _ = serve(t, RequireRole("user")(ok), "Bearer good")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
