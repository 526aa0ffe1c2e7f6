package middleware

import "github.com/labstack/echo/v4"

// NoStore marks responses as uncacheable. Every /v1/auth response carries a
// token, a refresh cookie or account data, none of which a browser or proxy
// may keep.
func NoStore() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Add(echo.HeaderVary, echo.HeaderCookie)
			h.Add(echo.HeaderVary, echo.HeaderAuthorization)
			return next(c)
		}
	}
}
