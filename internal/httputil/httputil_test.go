package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.195, 70.41.3.18, 150.172.238.178")
	r.RemoteAddr = "10.0.0.1:1234"

	if got := GetClientIP(r); got != "203.0.113.195" {
		t.Fatalf("expected %q, got %q", "203.0.113.195", got)
	}
}

func TestGetClientIPFallsBackToRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.7")
	r.RemoteAddr = "10.0.0.1:1234"

	if got := GetClientIP(r); got != "198.51.100.7" {
		t.Fatalf("expected %q, got %q", "198.51.100.7", got)
	}
}

func TestGetClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"

	if got := GetClientIP(r); got != "192.0.2.1:5555" {
		t.Fatalf("expected %q, got %q", "192.0.2.1:5555", got)
	}
}

func TestWriteErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "invalid dsn")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"detail\":\"invalid dsn\"}\n" {
		t.Fatalf("unexpected body: %q", got)
	}
}
