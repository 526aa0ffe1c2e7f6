package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/authsession/internal/response"
	"github.com/iliyamo/authsession/internal/service"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorTable maps service errors to HTTP status and code. Order matters
// only in that the first match wins.
var errorTable = []errorMapping{
	{service.ErrValidation, http.StatusBadRequest, response.CodeValidation, "Invalid input"},
	{service.ErrWeakPassword, http.StatusBadRequest, response.CodeWeakPassword, "Password is too weak"},
	{service.ErrEmailExists, http.StatusConflict, response.CodeEmailExists, "Email already registered"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.CodeInvalidCredentials, "Invalid email or password"},
	{service.ErrMissingToken, http.StatusUnauthorized, response.CodeMissingToken, "Refresh token missing"},
	{service.ErrInvalidToken, http.StatusUnauthorized, response.CodeInvalidToken, "Invalid refresh token"},
	{service.ErrTokenRevoked, http.StatusUnauthorized, response.CodeTokenRevoked, "Refresh token has been revoked"},
	{service.ErrTokenExpired, http.StatusUnauthorized, response.CodeTokenExpired, "Refresh token expired"},
	{service.ErrNotFound, http.StatusNotFound, response.CodeNotFound, "User not found"},
}

// fail writes the envelope for err. Unclassified errors become a generic 500
// and the cause is only logged.
func (h *AuthHandler) fail(c echo.Context, err error) error {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			msg := m.message
			var de *service.DetailError
			if errors.As(err, &de) && de.Message != "" {
				msg = de.Message
			}
			return response.Error(c, m.status, m.code, msg)
		}
	}
	if !errors.Is(err, service.ErrInternal) {
		h.Log.Error("unmapped error", zap.String("path", c.Path()), zap.Error(err))
	}
	return response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
}
