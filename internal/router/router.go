package router // package router wires handlers and middleware onto echo

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/authsession/internal/handler"
	"github.com/iliyamo/authsession/internal/middleware"
	"github.com/iliyamo/authsession/internal/model"
	"github.com/iliyamo/authsession/internal/response"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Auth      *handler.AuthHandler
	Health    *handler.HealthHandler
	Verifier  middleware.AccessVerifier
	RateLimit echo.MiddlewareFunc // nil disables rate limiting
	Log       *zap.Logger
}

// New builds the echo instance with global middleware, the envelope error
// handler and every route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = response.HTTPErrorHandler
	e.Validator = handler.NewRequestValidator()

	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("64K"))

	RegisterRoutes(e, d.Health)
	RegisterAuth(e, d.Auth, d.Verifier, d.RateLimit)
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)
}

// RegisterAuth registers the session endpoints under /v1/auth. Credential
// and token exchange routes sit behind the rate limiter; /me requires a
// bearer access token. Nothing under the group may be cached.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v middleware.AccessVerifier, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", middleware.NoStore())

	var public []echo.MiddlewareFunc
	if limiter != nil {
		public = append(public, limiter)
	}
	g.POST("/register", a.Register, public...)
	g.POST("/login", a.Login, public...)
	g.POST("/refresh", a.Refresh, public...)
	g.POST("/logout", a.Logout)

	g.GET("/me", a.Me,
		middleware.JWTAuth(v),
		middleware.RequireRole(string(model.RoleUser), string(model.RoleAdmin)),
	)
}
