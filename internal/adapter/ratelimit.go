package adapter

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements a token-bucket rate limiter with continuous refill.
// Callers block in Wait() until a token is available or the context is
// cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RateLimitConfig sets each bucket's burst capacity and per-second refill
// rate. Zero fields fall back to RateLimitConfig.withDefaults' values — round
// numbers picked for the bundled simulated venue, not any real venue's
// published limit. A live venue integration should set these from its own
// documented limits via internal/config.VenueConfig rather than rely on the
// defaults.
type RateLimitConfig struct {
	OrderCapacity, OrderRate   float64
	CancelCapacity, CancelRate float64
	BookCapacity, BookRate     float64
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.OrderCapacity <= 0 {
		c.OrderCapacity = 100
	}
	if c.OrderRate <= 0 {
		c.OrderRate = 20
	}
	if c.CancelCapacity <= 0 {
		c.CancelCapacity = 100
	}
	if c.CancelRate <= 0 {
		c.CancelRate = 20
	}
	if c.BookCapacity <= 0 {
		c.BookCapacity = 60
	}
	if c.BookRate <= 0 {
		c.BookRate = 10
	}
	return c
}

// RateLimiter groups token buckets by venue endpoint category. Each
// outbound REST call waits on the matching bucket before the request goes
// out.
type RateLimiter struct {
	Order  *TokenBucket // POST /orders, PATCH /orders/{id}
	Cancel *TokenBucket // DELETE /orders/{id}, DELETE /orders
	Book   *TokenBucket // GET /book, GET /bars, GET /quotes, GET /trades
}

// NewRateLimiter builds a RateLimiter from cfg, applying defaults to any
// zero-valued field.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	return &RateLimiter{
		Order:  NewTokenBucket(cfg.OrderCapacity, cfg.OrderRate),
		Cancel: NewTokenBucket(cfg.CancelCapacity, cfg.CancelRate),
		Book:   NewTokenBucket(cfg.BookCapacity, cfg.BookRate),
	}
}
