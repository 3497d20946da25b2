// Package httpapi is the gateway's HTTP façade: request validation, session
// lifecycle endpoints, health/metrics surfaces, and the chat/chat-stream
// entry points that hand a query to the Router. Grounded on the teacher's
// core/middleware.go (logging wrapper shape) and core/cors.go (origin
// matching), generalized from framework-agent concerns to SPEC_FULL.md §6's
// fixed endpoint set.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/argofloat/gateway/internal/config"
	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/logging"
	"github.com/argofloat/gateway/internal/ratelimit"
	"github.com/argofloat/gateway/internal/session"
)

// Router is the capability surface the façade needs from the routing layer.
type Router interface {
	Route(ctx context.Context, query string, history []domain.ConversationMessage, onEvent domain.ProgressFunc) (domain.CoordinatorResponse, error)
}

// HealthReporter is the capability surface the façade needs to render
// /health/ready and /health/detailed, matching telemetry.Health's
// status-by-component shape.
type HealthReporter interface {
	Healthy() bool
}

// Server wires the Router, Session Store, rate limiter, and metrics into a
// single http.Handler. Every dependency is acquired once at construction and
// closed by the caller at shutdown (SPEC_FULL.md §9's "no global state"
// note) — Server itself holds no package-level state.
type Server struct {
	cfg      *config.Config
	router   Router
	sessions session.Store
	limiter  *ratelimit.Limiter
	logger   logging.ContextLogger
	metrics  *metricsCollector
	started  time.Time
	ready    atomic.Bool
	reporter HealthReporter
}

// NewServer builds a Server. Call Ready(true) once startup dependencies
// (adapters, LLM client) are confirmed reachable; /health/ready returns 503
// until then.
func NewServer(cfg *config.Config, router Router, sessions session.Store, reporter HealthReporter, logger logging.ContextLogger) *Server {
	if logger == nil {
		logger = logging.NoOp{}
	}
	s := &Server{
		cfg:      cfg,
		router:   router,
		sessions: sessions,
		limiter:  ratelimit.New(cfg.RateLimitCalls, time.Duration(cfg.RateLimitPeriodSec)*time.Second),
		logger:   logger,
		metrics:  newMetricsCollector(),
		started:  time.Now(),
		reporter: reporter,
	}
	return s
}

// Ready marks the façade as having completed startup, gating /health/ready.
func (s *Server) Ready(v bool) { s.ready.Store(v) }

// Handler builds the full middleware-wrapped mux: security headers -> CORS
// -> request logging -> rate limiting -> otelhttp instrumentation -> routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerChatRoutes(mux)
	s.registerSessionRoutes(mux)
	s.registerHealthRoutes(mux)
	s.registerMetricsRoutes(mux)

	var h http.Handler = mux
	h = otelhttp.NewHandler(h, "gateway")
	if s.cfg.EnableRateLimiting {
		h = ratelimit.Middleware(s.limiter, s.cfg.RateLimitPeriodSec, h)
	}
	h = s.loggingMiddleware(h)
	h = s.corsMiddleware(h)
	h = securityHeadersMiddleware(h)
	return h
}

// responseWriter wraps http.ResponseWriter to capture the status code for
// access logging, matching core/middleware.go's responseWriter.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs one line per request, matching
// core/middleware.go's LoggingMiddleware.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.InfoWithContext(r.Context(), "http request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   ratelimit.ClientIP(r),
		})
	})
}

// securityHeadersMiddleware applies the conservative header set of
// original_source's SecurityHeadersMiddleware: clickjacking, MIME-sniffing,
// referrer leakage, and a same-origin CSP, plus HSTS on HTTPS requests.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware matches core/cors.go's origin-allowlist behavior: "*" in
// config allows any origin, otherwise an exact allowlist check.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && isOriginAllowed(origin, s.cfg.CORSOrigins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
