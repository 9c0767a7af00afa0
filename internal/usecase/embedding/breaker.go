package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/metrics"
)

// BreakerConfig tunes the provider circuit breaker.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval is the closed-state window after which counts reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// MinRequests before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the breaker trips.
	FailureRatio float64
}

// DefaultBreakerConfig returns conservative breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.5,
	}
}

// BreakerEmbedder stops calling a failing provider for a while, so searches
// fall back to keyword retrieval without waiting on provider timeouts.
type BreakerEmbedder struct {
	inner    domain.Embedder
	cb       *gobreaker.CircuitBreaker
	provider string
}

// NewBreakerEmbedder wraps inner with a circuit breaker.
func NewBreakerEmbedder(inner domain.Embedder, provider string, cfg BreakerConfig, logger *zap.Logger) *BreakerEmbedder {
	st := gobreaker.Settings{
		Name:        "embedding:" + provider,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.EmbeddingBreakerState.WithLabelValues(provider).Set(stateValue(to))
			logger.Warn("Embedding circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isBreakerSuccess,
	}
	metrics.EmbeddingBreakerState.WithLabelValues(provider).Set(stateValue(gobreaker.StateClosed))

	return &BreakerEmbedder{
		inner:    inner,
		cb:       gobreaker.NewCircuitBreaker(st),
		provider: provider,
	}
}

// Embed runs the inner embedder through the breaker.
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.EmbeddingResult{}, fmt.Errorf("%s: %v: %w", b.provider, err, domain.ErrEmbeddingProviderError)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("breaker: %w", err)
	}
	return out.(domain.EmbeddingResult), nil
}

// State reports the current breaker state.
func (b *BreakerEmbedder) State() gobreaker.State { return b.cb.State() }

// HealthCheck forwards to the inner embedder when it supports health checks.
func (b *BreakerEmbedder) HealthCheck(ctx context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("circuit open: %w", domain.ErrEmbeddingProviderError)
	}
	if hc, ok := b.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}

// isBreakerSuccess counts only provider faults against the breaker. Budget
// rejections and caller cancellations say nothing about provider health.
func isBreakerSuccess(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return true
	case errors.Is(err, context.Canceled):
		return true
	default:
		return false
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
