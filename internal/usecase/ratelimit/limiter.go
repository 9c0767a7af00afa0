// Package ratelimit caps request rates per caller with fixed windows kept in
// the key-value store.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/catuchi/LawMadeSimple-sub001/internal/logger"
	"github.com/catuchi/LawMadeSimple-sub001/internal/metrics"
)

// Defaults used when the configuration leaves a budget unset.
const (
	DefaultWindow          = time.Minute
	DefaultAnonymousLimit  = 30
	DefaultIdentifiedLimit = 120
)

// Key scopes.
const (
	ScopeUser = "user"
	ScopeIP   = "ip"
)

// windowCounter is the consumer interface for fixed-window counting (ISP).
type windowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Config holds window length and per-scope budgets.
type Config struct {
	Window          time.Duration
	AnonymousLimit  int64
	IdentifiedLimit int64
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter is a fixed-window rate limiter.
type Limiter struct {
	counter windowCounter
	cfg     Config
}

// New creates a Limiter. Unset fields fall back to the defaults.
func New(counter windowCounter, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.AnonymousLimit <= 0 {
		cfg.AnonymousLimit = DefaultAnonymousLimit
	}
	if cfg.IdentifiedLimit <= 0 {
		cfg.IdentifiedLimit = DefaultIdentifiedLimit
	}
	return &Limiter{counter: counter, cfg: cfg}
}

// Key builds the window key for a caller: the identity when known, else the
// client address.
func Key(identity, addr string) (key, scope string) {
	if identity != "" {
		return "rl:user:" + identity, ScopeUser
	}
	return "rl:ip:" + addr, ScopeIP
}

// Allow counts one request against key. Counter failures fail open.
func (l *Limiter) Allow(ctx context.Context, key, scope string) Decision {
	limit := l.cfg.AnonymousLimit
	if scope == ScopeUser {
		limit = l.cfg.IdentifiedLimit
	}

	count, ttl, err := l.counter.IncrWindow(ctx, key, l.cfg.Window)
	if err != nil {
		logger.FromContext(ctx).Warn("Rate limit check failed, allowing request",
			zap.String("key", key), zap.Error(err))
		metrics.RateLimitDecisionsTotal.WithLabelValues(scope, "error").Inc()
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	if count > limit {
		metrics.RateLimitDecisionsTotal.WithLabelValues(scope, "denied").Inc()
		return Decision{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: ttl}
	}

	metrics.RateLimitDecisionsTotal.WithLabelValues(scope, "allowed").Inc()
	return Decision{Allowed: true, Limit: limit, Remaining: remaining, RetryAfter: ttl}
}
