package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterAllowsWithinBudget(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		res := l.Allow("1.2.3.4")
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	res := l.Allow("1.2.3.4")
	if res.Allowed {
		t.Fatal("4th request should be rejected")
	}
	if res.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", res.Remaining)
	}
}

func TestLimiterIsPerClient(t *testing.T) {
	l := New(1, time.Minute)
	if !l.Allow("1.1.1.1").Allowed {
		t.Fatal("first client's first request should be allowed")
	}
	if !l.Allow("2.2.2.2").Allowed {
		t.Fatal("second client should have its own budget")
	}
	if l.Allow("1.1.1.1").Allowed {
		t.Fatal("first client's second request should be rejected")
	}
}

func TestLimiterWindowSlides(t *testing.T) {
	l := New(1, 20*time.Millisecond)
	if !l.Allow("9.9.9.9").Allowed {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("9.9.9.9").Allowed {
		t.Fatal("second request within window should be rejected")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("9.9.9.9").Allowed {
		t.Fatal("request after window elapses should be allowed")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	r.RemoteAddr = "127.0.0.1:1234"
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Errorf("expected 10.0.0.1, got %q", got)
	}
}

func TestClientIPFallsBackToRealIPThenPeer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "10.0.0.9")
	r.RemoteAddr = "127.0.0.1:1234"
	if got := ClientIP(r); got != "10.0.0.9" {
		t.Errorf("expected 10.0.0.9, got %q", got)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.RemoteAddr = "127.0.0.1:1234"
	if got := ClientIP(r2); got != "127.0.0.1" {
		t.Errorf("expected 127.0.0.1, got %q", got)
	}
}

func TestMiddlewareSetsHeadersAndRejects(t *testing.T) {
	l := New(1, time.Minute)
	handler := Middleware(l, 60, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "5.5.5.5:1"
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec1.Code)
	}
	if rec1.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("expected limit header 1, got %q", rec1.Header().Get("X-RateLimit-Limit"))
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "5.5.5.5:2"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec2.Code)
	}
	if rec2.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", rec2.Header().Get("Retry-After"))
	}
}
