package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type healthCheckerFunc func(ctx context.Context) error

func (f healthCheckerFunc) Check(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_NoChecker(t *testing.T) {
	h := NewHealthHandler(nil, nil)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestHealthHandler_CheckerFailure(t *testing.T) {
	h := NewHealthHandler(healthCheckerFunc(func(ctx context.Context) error {
		return errors.New("database ping failed: connection refused")
	}), nil)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	body := assertEnvelope(t, w, http.StatusServiceUnavailable, "Internal server error")
	if body["details"] != "dependency unavailable" {
		t.Errorf("details = %v", body["details"])
	}
}
