package chi

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/usecase/ratelimit"
)

type rateLimiter interface {
	Allow(ctx context.Context, key, scope string) ratelimit.Decision
}

// RateLimitMiddleware applies per-caller fixed-window limits. It must run after
// IdentityMiddleware so identified callers get their own budget.
func RateLimitMiddleware(limiter rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			id := domain.IdentityFromContext(r.Context())
			key, scope := ratelimit.Key(string(id), clientAddr(r))
			d := limiter.Allow(r.Context(), key, scope)

			retry := strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds())))
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			h.Set("X-RateLimit-Reset", retry)

			if !d.Allowed {
				if d.RetryAfter <= 0 {
					retry = "1"
				}
				h.Set("Retry-After", retry)
				writeError(w, http.StatusTooManyRequests, ErrorCodeRateLimited, domain.ErrRateLimited.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr strips the port from RemoteAddr, which chi's RealIP may already
// have replaced with a forwarded address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
