package handlers

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/logging"
)

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

// throttled reports whether the request exceeded the limiter's budget for
// scope. When it did, a 429 envelope has already been written.
func throttled(w http.ResponseWriter, r *http.Request, limiter RateLimiter, scope, message string) bool {
	if limiter == nil {
		return false
	}
	ip := clientIP(r)
	if limiter.Allow(scope + ":" + ip) {
		return false
	}

	ctx := r.Context()
	logging.FromContext(ctx).Warn("rate limited", slog.String("scope", scope), slog.String("client_ip", ip))
	respondJSON(ctx, w, http.StatusTooManyRequests, errorEnvelope{
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
		Errors:     []string{},
	})
	return true
}

// clientIP prefers proxy headers over the socket address.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
