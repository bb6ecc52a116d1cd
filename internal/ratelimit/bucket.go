// Package ratelimit implements the gateway's per-caller token-bucket limiter,
// including per-method overrides and multipliers for privileged callers.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is a single token bucket. tokens and lastRefill are guarded by mu
// rather than atomics because refill-then-consume must happen as one
// critical section to keep 0 ≤ tokens ≤ capacity*multiplier an invariant.
type bucket struct {
	mu         sync.Mutex
	rate       float64 // tokens added per second
	capacity   float64
	multiplier float64
	tokens     float64
	lastRefill time.Time
}

func newBucket(rate, capacity, multiplier float64, now time.Time) *bucket {
	return &bucket{
		rate:       rate,
		capacity:   capacity,
		multiplier: multiplier,
		tokens:     capacity * multiplier,
		lastRefill: now,
	}
}

// allow refills the bucket for the elapsed time since the last observation,
// then attempts to consume one token. Returns whether the request is
// admitted and, if not, a retry-after duration derived from the refill rate.
func (b *bucket) allow(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		max := b.capacity * b.multiplier
		b.tokens += elapsed * b.rate
		if b.tokens > max {
			b.tokens = max
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	deficit := 1 - b.tokens
	if b.rate <= 0 {
		return false, time.Hour
	}
	return false, time.Duration(deficit/b.rate*float64(time.Second)) + time.Millisecond
}

func (b *bucket) setMultiplier(m float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.multiplier = m
}

func (b *bucket) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastRefill)
}
