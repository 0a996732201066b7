// Package ratelimit provides per-(client, endpoint class) admission
// control. Buckets refill continuously and are created lazily on a
// client's first request; idle buckets are garbage-collected.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Class identifies an endpoint class with its own budget.
type Class string

const (
	ClassProve  Class = "prove"
	ClassBatch  Class = "batch"
	ClassUpload Class = "upload"
)

// Limit is a bucket configuration: capacity tokens per window, refilled
// continuously.
type Limit struct {
	Capacity int
	Window   time.Duration
}

// DefaultLimits mirrors the published budgets: 10/60s for prove, 2/60s for
// batch, 1/300s for upload.
func DefaultLimits() map[Class]Limit {
	return map[Class]Limit{
		ClassProve:  {Capacity: 10, Window: 60 * time.Second},
		ClassBatch:  {Capacity: 2, Window: 60 * time.Second},
		ClassUpload: {Capacity: 1, Window: 300 * time.Second},
	}
}

// Error carries enough information for a retry-after hint.
type Error struct {
	Class      Class
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Class, e.RetryAfter.Round(time.Second))
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	limits  map[Class]Limit
	buckets map[string]*bucket
	maxIdle time.Duration
}

func New(limits map[Class]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Limiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		maxIdle: 30 * time.Minute,
	}
}

// Allow consumes one token from the (client, class) bucket. On rejection
// it returns an *Error with the delay after which a token will exist.
// Contention is local to the limiter map lock plus one bucket.
func (l *Limiter) Allow(client string, class Class) error {
	cfg, ok := l.limits[class]
	if !ok {
		return nil
	}

	key := string(class) + ":" + client

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			lim: rate.NewLimiter(rate.Limit(float64(cfg.Capacity)/cfg.Window.Seconds()), cfg.Capacity),
		}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	res := b.lim.Reserve()
	if !res.OK() {
		return &Error{Class: class, RetryAfter: cfg.Window}
	}
	if delay := res.Delay(); delay > 0 {
		// Not admitted now; give the token back rather than queueing.
		res.Cancel()
		return &Error{Class: class, RetryAfter: delay}
	}
	return nil
}

// Sweep drops buckets idle longer than the GC horizon. Run it from a
// ticker goroutine.
func (l *Limiter) Sweep() int {
	cutoff := time.Now().Add(-l.maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the live bucket count, for tests and health reporting.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
