// Package response writes the JSON envelope shared by every endpoint:
//
//	{"success": bool, "data": ..., "error": {"code": ..., "message": ...}}
package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error codes.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeMissingToken       = "MISSING_TOKEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeNotReady           = "NOT_READY"
	CodeInternal           = "INTERNAL_ERROR"
)

type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data with the given status.
func Success(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Error writes a failure envelope.
func Error(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// HTTPErrorHandler renders errors that escape handlers (unknown routes,
// wrong methods, panics recovered by middleware) in the same envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	code := CodeInternal
	message := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch {
		case status == http.StatusNotFound:
			code, message = CodeNotFound, "Resource not found"
		case status == http.StatusMethodNotAllowed:
			code, message = CodeNotFound, "Method not allowed"
		case status == http.StatusUnauthorized:
			code, message = CodeUnauthorized, "Authentication required"
		case status == http.StatusForbidden:
			code, message = CodeForbidden, "Forbidden"
		case status == http.StatusTooManyRequests:
			code, message = CodeRateLimited, "Too many requests"
		case status >= 400 && status < 500:
			code, message = CodeValidation, http.StatusText(status)
		}
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = Error(c, status, code, message)
	}
	if werr != nil {
		c.Logger().Error(werr)
	}
}
