package canvas

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the maximum sustained request rate.
	// Zero or negative disables limiting.
	RequestsPerSecond float64

	// BurstSize is the maximum number of requests that can be made in a burst
	BurstSize int

	// WaitTimeout is the maximum time to wait for a token
	WaitTimeout time.Duration
}

// DefaultRateLimiterConfig returns defaults that stay well below the Canvas
// request throttle for a single token.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         10,
		WaitTimeout:       30 * time.Second,
	}
}

// RateLimiter paces requests made with one access token.
type RateLimiter struct {
	limiter     *rate.Limiter
	waitTimeout time.Duration
}

// NewRateLimiter creates a new RateLimiter with the given configuration.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	limit := rate.Limit(config.RequestsPerSecond)
	if config.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := config.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter:     rate.NewLimiter(limit, burst),
		waitTimeout: config.WaitTimeout,
	}
}

// Allow blocks until a request may proceed, the wait timeout passes or ctx
// is done.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	if rl.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rl.waitTimeout)
		defer cancel()
	}
	return rl.limiter.Wait(ctx)
}
