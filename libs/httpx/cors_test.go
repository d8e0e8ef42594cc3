package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMatchOriginExact(t *testing.T) {
	allowed := []string{"https://portal.example"}
	if got, ok := matchOrigin("https://portal.example", allowed, false); !ok || got != "https://portal.example" {
		t.Fatalf("exact origin not matched: got %q ok=%v", got, ok)
	}
	if _, ok := matchOrigin("https://other.example", allowed, false); ok {
		t.Fatal("unlisted origin must not match")
	}
}

func TestMatchOriginWildcardSubdomain(t *testing.T) {
	allowed := []string{"https://*.portal.example"}
	if got, ok := matchOrigin("https://acme.portal.example", allowed, false); !ok || got != "https://acme.portal.example" {
		t.Fatalf("subdomain not matched: got %q ok=%v", got, ok)
	}
	if _, ok := matchOrigin("http://acme.portal.example", allowed, false); ok {
		t.Fatal("scheme must match the pattern")
	}
	if _, ok := matchOrigin("https://portal.example", allowed, false); ok {
		t.Fatal("apex domain is not covered by the subdomain pattern")
	}
	if _, ok := matchOrigin("https://evilportal.example", allowed, false); ok {
		t.Fatal("suffix lookalike must not match")
	}
}

func TestWithCORSPreflight(t *testing.T) {
	mw := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://*.portal.example"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         10 * time.Minute,
	})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/public/slots", nil)
	req.Header.Set("Origin", "https://acme.portal.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://acme.portal.example" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Fatalf("Allow-Methods = %q", got)
	}
}
