package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/pool"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	p := pool.New(cfg)
	return New(p, nil)
}

func decodeOK(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeOK(t, rec)
	if ok, _ := body["ok"].(bool); !ok {
		t.Fatalf("body[ok] = %v, want true", body["ok"])
	}
}

func TestHandleListSessionsEmpty(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	body := decodeOK(t, rec)
	sessions, ok := body["sessions"].([]any)
	if !ok {
		t.Fatalf("body[sessions] = %v, want an array", body["sessions"])
	}
	if len(sessions) != 0 {
		t.Fatalf("len(sessions) = %d, want 0 on a fresh pool", len(sessions))
	}
}

func TestHandleEventsUnknownSessionReturnsNotFound(t *testing.T) {
	s := testServer(t)
	payload, _ := json.Marshal(eventRequest{SessionID: "does-not-exist", Event: json.RawMessage(`{}`)})
	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	body := decodeOK(t, rec)
	if ok, _ := body["ok"].(bool); ok {
		t.Fatal("body[ok] = true, want false for an unknown session")
	}
}

func TestHandleScreenshotMalformedBodyReturnsBadRequest(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/screenshots", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWithCORSHandlesPreflight(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := withCORS(inner)

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if called {
		t.Fatal("inner handler should not run for an OPTIONS preflight")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want \"*\"", got)
	}
}
