// Package ratelimit paces outbound calls to PageVoice's upstream services.
// Each upstream gets its own token bucket, looked up by name, so a burst of
// OCR traffic never starves reader page fetches sharing the same limiter.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter hands out one token bucket per key. The key space is the
// fixed set of upstream names (reader, ocr, cartesia, elevenlabs), so the
// bucket map stays a handful of entries and never needs eviction.
type KeyedRateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// New creates a limiter allowing rps requests per second with the given
// burst for each distinct key.
func New(rps float64, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

// Allow reports whether a request for key may proceed right now, without
// blocking.
func (k *KeyedRateLimiter) Allow(key string) bool {
	return k.bucket(key).Allow()
}

// Wait blocks until a request for key may proceed or ctx is done. Upstream
// clients call this before every outbound request.
func (k *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return k.bucket(key).Wait(ctx)
}

// Stop drops every bucket. Client Close methods call this; a limiter used
// again afterwards simply starts over from a full burst.
func (k *KeyedRateLimiter) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.buckets = make(map[string]*rate.Limiter)
}

func (k *KeyedRateLimiter) bucket(key string) *rate.Limiter {
	k.mu.RLock()
	limiter, ok := k.buckets[key]
	k.mu.RUnlock()
	if ok {
		return limiter
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if limiter, ok = k.buckets[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(k.limit, k.burst)
	k.buckets[key] = limiter
	return limiter
}
