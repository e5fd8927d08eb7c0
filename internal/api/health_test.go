package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler_CheckHealth(t *testing.T) {
	h := NewHealthHandler(func() bool { return true })
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.CheckHealth(w, req)
	if code := w.Result().StatusCode; code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", code)
	}

	h = NewHealthHandler(func() bool { return false })
	w = httptest.NewRecorder()
	h.CheckHealth(w, req)
	if code := w.Result().StatusCode; code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status code: %d", code)
	}
}
