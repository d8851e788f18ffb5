package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	mu    sync.Mutex
	tiers []*rate.Limiter
}

func newBucket(tiers []Tier) *bucket {
	b := &bucket{tiers: make([]*rate.Limiter, len(tiers))}
	for i, t := range tiers {
		b.tiers[i] = rate.NewLimiter(rate.Limit(t.tokensPerSecond()), t.Capacity)
	}
	return b
}

// consume takes one token from every tier when all of them have one.
// Callers hold b.mu.
func (b *bucket) consume(now time.Time) bool {
	for _, lim := range b.tiers {
		if lim.TokensAt(now) < 1 {
			return false
		}
	}
	for _, lim := range b.tiers {
		lim.AllowN(now, 1)
	}
	return true
}

// wait returns how long until every tier holds a token. Callers hold b.mu.
func (b *bucket) wait(now time.Time) time.Duration {
	var longest time.Duration
	for _, lim := range b.tiers {
		tokens := lim.TokensAt(now)
		if tokens >= 1 {
			continue
		}
		d := time.Duration((1 - tokens) / float64(lim.Limit()) * float64(time.Second))
		if d > longest {
			longest = d
		}
	}
	return longest
}

// MemoryLimiter keeps token buckets in process memory. Buckets are created
// on first use and live until ClearBucket.
type MemoryLimiter struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type Option func(*MemoryLimiter)

func WithClock(now func() time.Time) Option {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

func NewMemoryLimiter(policy Policy, opts ...Option) *MemoryLimiter {
	l := &MemoryLimiter{
		policy:  policy,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) bucketFor(p Principal) (*bucket, TierClass) {
	class := l.policy.ClassFor(p.Role)
	key := bucketKey(class, p.UserID)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(l.policy.Tiers(class))
		l.buckets[key] = b
	}
	return b, class
}

func (l *MemoryLimiter) TryConsume(p Principal) bool {
	b, _ := l.bucketFor(p)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consume(l.now())
}

// WaitTime is zero when a request would be admitted now, otherwise the time
// until the most constrained tier has a token again.
func (l *MemoryLimiter) WaitTime(p Principal) time.Duration {
	b, _ := l.bucketFor(p)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wait(l.now())
}

func (l *MemoryLimiter) ClearBucket(p Principal) {
	key := bucketKey(l.policy.ClassFor(p.Role), p.UserID)

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

func (l *MemoryLimiter) Allow(_ context.Context, p Principal) (Decision, error) {
	b, class := l.bucketFor(p)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	if b.consume(now) {
		return Decision{Allowed: true, Class: class}, nil
	}
	return Decision{Allowed: false, RetryAfter: b.wait(now), Class: class}, nil
}

func (l *MemoryLimiter) Clear(_ context.Context, p Principal) error {
	l.ClearBucket(p)
	return nil
}

func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
