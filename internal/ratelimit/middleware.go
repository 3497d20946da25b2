package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Middleware wraps next with per-client-IP rate limiting, setting
// X-RateLimit-* headers on every response and rejecting with 429 plus a
// Retry-After header once the limit is exceeded, matching
// original_source's RateLimitMiddleware response shape.
func Middleware(limiter *Limiter, periodSeconds int, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := limiter.Allow(ClientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetUnix, 10))

		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(periodSeconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":       "Rate Limit Exceeded",
				"message":     "Too many requests. Limit: " + strconv.Itoa(result.Limit) + " per " + strconv.Itoa(periodSeconds) + " seconds",
				"retry_after": periodSeconds,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
