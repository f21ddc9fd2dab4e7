package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a per-caller token bucket. Each caller gets capacity tokens
// that refill at capacity per window; an empty bucket rejects the request.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	refill   float64 // tokens per second
	cleanup  *time.Ticker
	done     chan struct{}
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

func NewLimiter(capacity int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(capacity),
		refill:   float64(capacity) / window.Seconds(),
		cleanup:  time.NewTicker(5 * time.Minute),
		done:     make(chan struct{}),
	}
	go l.evictIdle()
	return l
}

// Allow spends one token for the caller. An empty caller key is not limited;
// those requests are already rejected upstream by auth.
func (l *Limiter) Allow(caller string) bool {
	if caller == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[caller]
	if !ok {
		b = &bucket{tokens: l.capacity, lastFill: now}
		l.buckets[caller] = b
	}

	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * l.refill
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastFill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) evictIdle() {
	for {
		select {
		case <-l.done:
			return
		case <-l.cleanup.C:
			l.mu.Lock()
			stale := time.Now().Add(-15 * time.Minute)
			for caller, b := range l.buckets {
				if b.lastFill.Before(stale) {
					delete(l.buckets, caller)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Stop() {
	l.cleanup.Stop()
	close(l.done)
}
