package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/authsession/internal/repository"
)

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func TestHealthAndReady(t *testing.T) {
	e := echo.New()
	up := NewHealthHandler(repository.NewMemoryStore(), nil)
	down := NewHealthHandler(downStore{}, nil)
	e.GET("/healthz", down.Health)
	e.GET("/readyz", up.Ready)
	e.GET("/readyz-down", down.Ready)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code, "liveness does not depend on the store")
	assert.JSONEq(t, `{"success":true,"data":{"status":"ok"}}`, rec.Body.String())

	rec = get("/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"status":"ready","store":"up"}}`, rec.Body.String())

	rec = get("/readyz-down")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"NOT_READY","message":"Store unavailable"}}`, rec.Body.String())
}
