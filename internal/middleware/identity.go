package middleware

// identity.go holds the context keys written by JWTAuth and helpers to read
// them back in handlers and other middleware.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authsession/internal/utils"
)

const (
	ContextClaims = "claims"
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// Claims returns the verified access token claims, or nil on routes without
// JWTAuth.
func Claims(c echo.Context) *utils.AccessClaims {
	cl, _ := c.Get(ContextClaims).(*utils.AccessClaims)
	return cl
}

// UserID returns the authenticated subject, or "" when there is none.
func UserID(c echo.Context) string {
	s, _ := c.Get(ContextUserID).(string)
	return s
}
