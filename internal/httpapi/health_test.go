package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubReporter struct{ healthy bool }

func (r stubReporter) Healthy() bool { return r.healthy }

func TestHealthLivenessAlwaysReturns200(t *testing.T) {
	srv, _ := newTestServer(t, &stubRouter{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHealthReadyReturns503BeforeReadyIsSet(t *testing.T) {
	srv, _ := newTestServer(t, &stubRouter{})
	srv.Ready(false)
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestHealthReadyReturns503WhenReporterUnhealthy(t *testing.T) {
	srv, _ := newTestServer(t, &stubRouter{})
	srv.reporter = stubReporter{healthy: false}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestHealthReadyReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(t, &stubRouter{})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
