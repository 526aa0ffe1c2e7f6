package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/authsession/internal/config"
	"github.com/iliyamo/authsession/internal/middleware"
	"github.com/iliyamo/authsession/internal/model"
	"github.com/iliyamo/authsession/internal/response"
	"github.com/iliyamo/authsession/internal/service"
)

// Sessions is the subset of service.SessionManager used by AuthHandler.
type Sessions interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Refresh(ctx context.Context, in service.RefreshInput) (*service.AuthResult, error)
	Logout(ctx context.Context, in service.LogoutInput) error
	GetCurrentUser(ctx context.Context, userID string) (model.PublicUser, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      *config.Config
	Sessions Sessions
	Log      *zap.Logger
}

func NewAuthHandler(cfg *config.Config, s Sessions, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Cfg: cfg, Sessions: s, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=100"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

// authData is the success payload of register, login and refresh. The
// refresh fields are only filled with body transport.
type authData struct {
	AccessToken           string            `json:"accessToken"`
	AccessTokenExpiresAt  time.Time         `json:"accessTokenExpiresAt"`
	RefreshToken          string            `json:"refreshToken,omitempty"`
	RefreshTokenExpiresAt *time.Time        `json:"refreshTokenExpiresAt,omitempty"`
	User                  *model.PublicUser `json:"user,omitempty"`
}

// Register: POST /v1/auth/register -> 201.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := c.Validate(&req); err != nil {
		return response.Error(c, http.StatusBadRequest, response.CodeValidation, validationMessage(err))
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.Sessions.Register(ctx, service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Client:   clientMeta(c),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return h.issue(c, http.StatusCreated, res)
}

// Login: POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, http.StatusBadRequest, response.CodeValidation, validationMessage(err))
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.Sessions.Login(ctx, service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Client:   clientMeta(c),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return h.issue(c, http.StatusOK, res)
}

// Refresh: POST /v1/auth/refresh. Rotates the presented refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	secret, err := h.presentedRefreshToken(c)
	if err != nil {
		return response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.Sessions.Refresh(ctx, service.RefreshInput{RefreshToken: secret, Client: clientMeta(c)})
	if err != nil {
		// the cookie can never succeed again, so drop it
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenRevoked) || errors.Is(err, service.ErrTokenExpired) {
			h.clearRefreshCookie(c)
		}
		return h.fail(c, err)
	}
	return h.issue(c, http.StatusOK, res)
}

// Logout: POST /v1/auth/logout. Succeeds whether or not a token was presented.
func (h *AuthHandler) Logout(c echo.Context) error {
	secret, _ := h.presentedRefreshToken(c)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.Sessions.Logout(ctx, service.LogoutInput{RefreshToken: secret, Client: clientMeta(c)}); err != nil {
		return h.fail(c, err)
	}
	h.clearRefreshCookie(c)
	return response.Success(c, http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// Me: GET /v1/auth/me, behind JWTAuth.
func (h *AuthHandler) Me(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication required")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	u, err := h.Sessions.GetCurrentUser(ctx, uid)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, http.StatusOK, u)
}

func (h *AuthHandler) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
}

func clientMeta(c echo.Context) service.ClientMeta {
	return service.ClientMeta{UserAgent: c.Request().UserAgent(), IP: c.RealIP()}
}

// issue writes the token payload and, with cookie transport, the refresh
// cookie.
func (h *AuthHandler) issue(c echo.Context, status int, res *service.AuthResult) error {
	data := authData{
		AccessToken:          res.AccessToken,
		AccessTokenExpiresAt: res.AccessExpiresAt,
		User:                 &res.User,
	}
	if h.Cfg.RefreshTransport == config.TransportBody {
		data.RefreshToken = res.RefreshToken
		exp := res.RefreshExpiresAt
		data.RefreshTokenExpiresAt = &exp
	} else {
		h.setRefreshCookie(c, res.RefreshToken, res.RefreshExpiresAt)
	}
	return response.Success(c, status, data)
}

// presentedRefreshToken reads the secret from the cookie or the JSON body,
// depending on the configured transport. An absent token is "" with no error.
func (h *AuthHandler) presentedRefreshToken(c echo.Context) (string, error) {
	if h.Cfg.RefreshTransport != config.TransportBody {
		ck, err := c.Cookie(h.Cfg.RefreshCookieName)
		if err != nil {
			return "", nil
		}
		return ck.Value, nil
	}
	if c.Request().ContentLength == 0 {
		return "", nil
	}
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return "", err
	}
	return req.RefreshToken, nil
}
