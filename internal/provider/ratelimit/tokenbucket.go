// Package ratelimit gates upstream calls. Limits are provider-local: each
// provider knows its own quota, so the buckets live inside the provider
// rather than wrapping it.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a stdlib-only token bucket limiter.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
	}
}

// Wait blocks until one token is available or the context is canceled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.last).Seconds()
		if elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens -= 1
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()

		waitDur := time.Duration(deficit / tb.rate * 1e9 * float64(time.Nanosecond))
		if waitDur <= 0 {
			waitDur = time.Millisecond
		}
		timer := time.NewTimer(waitDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// PerKey maintains one bucket per upstream API method. Sources like Tushare
// meter each endpoint separately, so a burst of price fetches must not starve
// the catalogue endpoints.
type PerKey struct {
	rate  float64
	burst int

	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// NewPerKey builds a limiter giving every key the same requests-per-minute
// quota. A non-positive rpm disables limiting.
func NewPerKey(rpm, burst int) *PerKey {
	if rpm <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &PerKey{rate: float64(rpm) / 60.0, burst: burst, buckets: make(map[string]*TokenBucket)}
}

// Wait blocks until the bucket for key has a token. A nil limiter admits
// everything.
func (k *PerKey) Wait(ctx context.Context, key string) error {
	if k == nil {
		return nil
	}
	k.mu.Lock()
	tb, ok := k.buckets[key]
	if !ok {
		tb = NewTokenBucket(k.rate, k.burst)
		k.buckets[key] = tb
	}
	k.mu.Unlock()
	return tb.Wait(ctx)
}
