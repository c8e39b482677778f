package ratelimiter

import (
	"sync"
	"time"
)

// bucket is a token bucket for a single identity
type bucket struct {
	tokens     float64
	capacity   float64
	rate       float64
	lastRefill time.Time
	mu         sync.Mutex
	timer      *time.Timer
	key        string
	parent     *UserRateLimiter
}

// UserRateLimiter keeps one bucket per identity. Idle buckets are dropped after expiration.
type UserRateLimiter struct {
	buckets    map[string]*bucket
	mu         sync.RWMutex
	rate       float64
	capacity   float64
	expiration time.Duration
}

// New returns a limiter refilling rate tokens per second up to capacity.
func New(rate float64, capacity float64, expiration time.Duration) *UserRateLimiter {
	return &UserRateLimiter{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		capacity:   capacity,
		expiration: expiration,
	}
}

func (l *UserRateLimiter) forget(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

func (b *bucket) touch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.parent.expiration, func() {
		b.parent.forget(b.key)
	})
}

func (l *UserRateLimiter) bucketFor(key string) *bucket {
	l.mu.RLock()
	b, exists := l.buckets[key]
	l.mu.RUnlock()
	if exists {
		b.touch()
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// another request may have created it meanwhile
	if b, exists = l.buckets[key]; exists {
		b.touch()
		return b
	}

	b = &bucket{
		tokens:     l.capacity,
		capacity:   l.capacity,
		rate:       l.rate,
		lastRefill: time.Now(),
		key:        key,
		parent:     l,
	}
	l.buckets[key] = b
	b.touch()
	return b
}

// take refills the bucket and spends a token. When the bucket is empty it
// reports how long until the next token.
func (b *bucket) take(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.rate <= 0 {
		return false, b.parent.expiration
	}
	missing := 1 - b.tokens
	return false, time.Duration(missing / b.rate * float64(time.Second))
}

// Allow takes a token from key's bucket if one is available.
func (l *UserRateLimiter) Allow(key string) bool {
	ok, _ := l.Take(key)
	return ok
}

// Take is Allow that also returns the wait until the next token when denied.
func (l *UserRateLimiter) Take(key string) (bool, time.Duration) {
	return l.bucketFor(key).take(time.Now())
}

// Stop cancels all expiration timers
func (l *UserRateLimiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.buckets {
		b.mu.Lock()
		if b.timer != nil {
			b.timer.Stop()
		}
		b.mu.Unlock()
	}
}

func (l *UserRateLimiter) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Messages allows a short burst of chat messages per user.
func Messages() *UserRateLimiter { return New(1, 5, time.Hour) }

// Streams bounds how often one user may (re)open event streams.
func Streams() *UserRateLimiter { return New(0.2, 10, time.Hour) }

func Rps100() *UserRateLimiter { return New(100, 100, time.Hour) }
