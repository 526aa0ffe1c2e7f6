package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authsession/internal/response"
)

// RequireRole lets the request through only when the role claim stored by
// JWTAuth is one of roles. It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ContextRole).(string)
			if !ok || !allowed[role] {
				return response.Error(c, http.StatusForbidden, response.CodeForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}
