package middleware // package middleware contains reusable HTTP middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authsession/internal/response"
	"github.com/iliyamo/authsession/internal/service"
	"github.com/iliyamo/authsession/internal/utils"
)

// AccessVerifier validates bearer access tokens. service.SessionManager
// implements it.
type AccessVerifier interface {
	VerifyAccess(token string) (*utils.AccessClaims, error)
}

// JWTAuth requires an `Authorization: Bearer <token>` header. A missing
// header is answered with 401 UNAUTHORIZED, a token that fails verification
// with 401 INVALID_TOKEN. On success the claims, subject and role are stored
// in the context (see identity.go).
func JWTAuth(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication required")
			}

			claims, err := v.VerifyAccess(raw)
			if err != nil {
				msg := "Invalid access token"
				if errors.Is(err, service.ErrTokenExpired) {
					msg = "Access token expired"
				}
				return response.Error(c, http.StatusUnauthorized, response.CodeInvalidToken, msg)
			}

			c.Set(ContextClaims, claims)
			c.Set(ContextUserID, claims.Subject)
			c.Set(ContextRole, claims.Role)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
