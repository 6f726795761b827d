package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket tracks the token count for a single key. Tokens regenerate
// continuously at refillRate per second rather than resetting at window
// boundaries, so the bucket never exhibits edge-of-window burst doubling.
// All methods are safe for concurrent use.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

// newTokenBucket creates a full bucket, so the first burst up to capacity is
// always admitted.
func newTokenBucket(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
	}
}

// refill credits tokens for the time elapsed since the last refill and clamps
// to capacity. Must be called with b.mu held before any read or mutation of
// b.tokens.
func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.lastRefill = now
}

// Consume attempts to take one token. Returns true when the request is
// admitted. Refill and consumption happen under one lock acquisition, so
// concurrent callers cannot over-admit within a zero-elapsed-time window.
func (b *TokenBucket) Consume(now time.Time) bool {
	return b.ConsumeN(now, 1)
}

// ConsumeN attempts to take cost tokens, leaving the count unchanged when
// fewer than cost are available.
func (b *TokenBucket) ConsumeN(now time.Time, cost float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)

	if b.tokens >= cost {
		b.tokens -= cost
		return true
	}
	return false
}

// AvailableTokens returns the whole tokens currently available. The count is
// floored so a partially regenerated token is never reported as available.
func (b *TokenBucket) AvailableTokens(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	return int(math.Floor(b.tokens))
}

// SecondsUntilNextToken returns how long until one full token is available,
// or 0 when a request could be admitted immediately.
func (b *TokenBucket) SecondsUntilNextToken(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)

	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.refillRate
}

// Capacity returns the maximum token count (burst size).
func (b *TokenBucket) Capacity() int {
	return int(b.capacity)
}

// idle reports whether the bucket has fully recovered and has not been
// refilled within the idle window. It projects the token count without
// mutating state so the check itself does not reset the idle clock.
func (b *TokenBucket) idle(now time.Time, idleWindow time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastRefill) <= idleWindow {
		return false
	}
	projected := b.tokens + now.Sub(b.lastRefill).Seconds()*b.refillRate
	return projected >= b.capacity
}
