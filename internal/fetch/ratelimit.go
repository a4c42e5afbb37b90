// ratelimit.go implements token-bucket rate limiting for the upstream APIs.
//
// The CLOB data API and the Gamma catalog enforce per-category limits over
// 10-second windows. The buckets refill continuously (rather than in 10s
// bursts) so a scanner polling dozens of markets never slams the window edge.
package fetch

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a rate limiter with continuous refill. Callers block in
// Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	lastTime time.Time
}

// NewTokenBucket creates a bucket with the given burst capacity and refill rate.
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

// RateLimiter groups token buckets by upstream endpoint category.
// Every fetch calls the matching bucket's Wait() before the HTTP request.
type RateLimiter struct {
	Catalog *TokenBucket // Gamma /markets
	Book    *TokenBucket // CLOB /book
	Price   *TokenBucket // CLOB /price
	History *TokenBucket // CLOB /prices-history
	Klines  *TokenBucket // macro kline REST
}

// NewRateLimiter creates buckets tuned to the published read limits.
// Capacities match the 10-second burst allowance, rates are 1/10th for
// smooth refill.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Catalog: NewTokenBucket(40, 4),   // 400 per 10s window
		Book:    NewTokenBucket(150, 15), // 1500 per 10s window
		Price:   NewTokenBucket(150, 15),
		History: NewTokenBucket(100, 10),
		Klines:  NewTokenBucket(50, 5),
	}
}
