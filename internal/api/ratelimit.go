package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/mtorresweb/spotlight-server/internal/http/response"
	"github.com/mtorresweb/spotlight-server/internal/ratelimit"
)

// RateLimitMiddleware limits mutating requests with a keyed token bucket.
// Authenticated callers are keyed by principal, anonymous ones by client IP.
// Returns 429 Too Many Requests when limit is exceeded.
func RateLimitMiddleware(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || !isMutation(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + clientIP(r)
			if p := PrincipalFrom(r.Context()); !p.IsZero() {
				key = "principal:" + p.ID
			}

			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", "1")
				logger.Warn("rate limit exceeded",
					"key", key,
					"path", r.URL.Path,
				)
				response.TooManyRequests(w, "Too many requests. Please try again later.", logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// clientIP returns the caller's address. chi's RealIP middleware has
// already replaced RemoteAddr with X-Forwarded-For or X-Real-IP when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
