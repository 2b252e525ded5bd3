package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSSetsHeadersForAllowedOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	CORS(cfg)(next).ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want echoed origin under wildcard config", got)
	}
}

func TestCORSRejectsDisallowedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowOrigins: []string{"https://allowed.example"}}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	CORS(cfg)(next).ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for a disallowed origin, got %q", got)
	}
}

func TestCORSAnswersPreflightWithoutCallingNext(t *testing.T) {
	cfg := DefaultCORSConfig()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	CORS(cfg)(next).ServeHTTP(w, req)

	if called {
		t.Fatalf("preflight OPTIONS should not reach the wrapped handler")
	}
	if w.Code != http.StatusNoContent {
		t.Fatalf("got %d, want 204 for preflight", w.Code)
	}
}

func TestCORSPassesThroughWithoutOriginHeader(t *testing.T) {
	cfg := DefaultCORSConfig()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	CORS(cfg)(next).ServeHTTP(w, req)

	if !called {
		t.Fatalf("expected the wrapped handler to run for a same-origin request")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header without an Origin header, got %q", got)
	}
}
