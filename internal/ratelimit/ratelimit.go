// Package ratelimit throttles calls to each verifier backend with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonathan/shabda-setu/internal/config"
)

// Info contains information about one verifier's rate limit status.
type Info struct {
	Limited   bool    // false when the verifier is unlimited
	PerMinute int     // configured requests per minute
	Burst     int     // bucket capacity
	Tokens    float64 // tokens currently available
}

// Limiter holds one token bucket per verifier. Verifiers without a
// configured limit are never throttled.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	perMin  map[string]int
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		perMin:  make(map[string]int),
	}
}

// FromConfig creates a limiter with a bucket for every rate-limited verifier.
func FromConfig(verifiers []config.VerifierConfig) *Limiter {
	l := New()
	for _, v := range verifiers {
		l.Set(v.Name, v.RequestsPerMinute)
	}
	return l
}

// Set configures the bucket for a verifier; perMinute <= 0 removes the limit.
// The bucket starts full with room for one second of traffic (at least one request).
func (l *Limiter) Set(name string, perMinute int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if perMinute <= 0 {
		delete(l.buckets, name)
		delete(l.perMin, name)
		return
	}

	burst := max(1, perMinute/60)
	l.buckets[name] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	l.perMin[name] = perMinute
}

// Wait blocks until the verifier may issue a request or ctx is done.
func (l *Limiter) Wait(ctx context.Context, name string) error {
	l.mu.RLock()
	bucket := l.buckets[name]
	l.mu.RUnlock()

	if bucket == nil {
		return nil
	}
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", name, err)
	}
	return nil
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (l *Limiter) Allow(name string) bool {
	l.mu.RLock()
	bucket := l.buckets[name]
	l.mu.RUnlock()

	return bucket == nil || bucket.Allow()
}

// Status returns the verifier's bucket status without consuming a token.
func (l *Limiter) Status(name string) Info {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bucket := l.buckets[name]
	if bucket == nil {
		return Info{}
	}
	return Info{
		Limited:   true,
		PerMinute: l.perMin[name],
		Burst:     bucket.Burst(),
		Tokens:    bucket.Tokens(),
	}
}
