package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authsession/internal/config"
)

// setRefreshCookie sets the HttpOnly refresh cookie with MaxAge equal to the
// token's remaining lifetime.
func (h *AuthHandler) setRefreshCookie(c echo.Context, secret string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt) / time.Second)
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.RefreshCookieName,
		Value:    secret,
		Path:     "/",
		Domain:   h.Cfg.CookieDomain,
		MaxAge:   maxAge,
		Expires:  expiresAt.UTC(),
		HttpOnly: true,
		Secure:   h.Cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	if h.Cfg.RefreshTransport == config.TransportBody {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.RefreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.Cfg.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   h.Cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
