package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/authsession/internal/response"
)

// Pinger is implemented by the user store (database ping, or a no-op for the
// memory store).
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	Store Pinger
	Log   *zap.Logger
}

func NewHealthHandler(store Pinger, log *zap.Logger) *HealthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthHandler{Store: store, Log: log}
}

// Health is the liveness probe; it never touches dependencies.
func (h *HealthHandler) Health(c echo.Context) error {
	return response.Success(c, http.StatusOK, echo.Map{"status": "ok"})
}

// Ready reports 503 until the store answers a ping.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		h.Log.Warn("readiness check failed", zap.Error(err))
		return response.Error(c, http.StatusServiceUnavailable, response.CodeNotReady, "Store unavailable")
	}
	return response.Success(c, http.StatusOK, echo.Map{"status": "ready", "store": "up"})
}
