package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a token bucket rate limiter. Tokens refill continuously at
// a fixed rate up to a cap; callers acquire tokens before making a call and
// are suspended until enough tokens are available.
type TokenBucket struct {
	mu         sync.Mutex
	maxTokens  float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time

	now func() time.Time
}

// NewTokenBucket creates a full bucket with the given capacity and refill
// rate in tokens per second.
func NewTokenBucket(maxTokens int, refillRate float64) *TokenBucket {
	b := &TokenBucket{
		maxTokens:  float64(maxTokens),
		refillRate: refillRate,
		tokens:     float64(maxTokens),
		now:        time.Now,
	}
	b.lastRefill = b.now()
	return b
}

// refill adds tokens for the wall-clock time elapsed since the last refill.
// Caller must hold the lock. Negative elapsed intervals are ignored so the
// bucket never drains on clock adjustments.
func (b *TokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now
}

// Acquire takes tokens from the bucket, suspending the caller until they are
// available. It returns the time spent waiting. Requests above capacity are
// not rejected; the caller waits out the full deficit at the refill rate.
// Token accounting and the decision to grant happen in a single critical
// section; a caller that must wait holds its claim so concurrent acquirers
// queue behind it.
func (b *TokenBucket) Acquire(ctx context.Context, tokens int) (time.Duration, error) {
	n := float64(tokens)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if b.tokens >= n {
		b.tokens -= n
		return 0, nil
	}

	deficit := n - b.tokens
	wait := time.Duration(deficit / b.refillRate * float64(time.Second))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}

	// The wait covered exactly the deficit; the grant empties the bucket.
	b.tokens = 0
	b.lastRefill = b.now()
	return wait, nil
}

// Tokens returns the current token count after refilling. Monitoring only.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}
