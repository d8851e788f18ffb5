package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission_service/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func singleTierPolicy(capacity int, period time.Duration) Policy {
	tiers := []Tier{{Name: "minute", Capacity: capacity, Period: period}}
	return Policy{Student: tiers, Instructor: tiers}
}

var student = Principal{UserID: "s1", Role: domain.UserRoleStudent}

func TestMemoryLimiter_CapacityThenRefill(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(singleTierPolicy(10, time.Minute), WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		require.True(t, l.TryConsume(student), "request %d", i+1)
	}
	assert.False(t, l.TryConsume(student))

	clock.Advance(30 * time.Second)
	assert.False(t, l.TryConsume(student) && l.TryConsume(student) && l.TryConsume(student) &&
		l.TryConsume(student) && l.TryConsume(student) && l.TryConsume(student))

	l.ClearBucket(student)
	clock.Advance(time.Minute)
	for i := 0; i < 10; i++ {
		require.True(t, l.TryConsume(student))
	}
	assert.False(t, l.TryConsume(student))

	clock.Advance(6*time.Second + time.Millisecond)
	assert.True(t, l.TryConsume(student))
}

func TestMemoryLimiter_WaitTime(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(singleTierPolicy(10, time.Minute), WithClock(clock.Now))

	assert.Zero(t, l.WaitTime(student))
	for i := 0; i < 10; i++ {
		require.True(t, l.TryConsume(student))
	}

	wait := l.WaitTime(student)
	assert.InDelta(t, (6 * time.Second).Seconds(), wait.Seconds(), 0.01)

	clock.Advance(wait + time.Millisecond)
	assert.Zero(t, l.WaitTime(student))
	assert.True(t, l.TryConsume(student))
}

func TestMemoryLimiter_BothTiersMustHaveCapacity(t *testing.T) {
	clock := newFakeClock()
	policy := DefaultPolicy()
	l := NewMemoryLimiter(policy, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		require.True(t, l.TryConsume(student))
	}
	assert.False(t, l.TryConsume(student), "minute tier exhausted, hour tier still has 90 tokens")

	wait := l.WaitTime(student)
	assert.InDelta(t, 6.0, wait.Seconds(), 0.01)
}

func TestMemoryLimiter_HourTierBinds(t *testing.T) {
	clock := newFakeClock()
	policy := Policy{
		Student: []Tier{
			{Name: "minute", Capacity: 10, Period: time.Minute},
			{Name: "hour", Capacity: 15, Period: time.Hour},
		},
		Instructor: DefaultPolicy().Instructor,
	}
	l := NewMemoryLimiter(policy, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		require.True(t, l.TryConsume(student))
	}
	clock.Advance(time.Minute)

	admitted := 0
	for i := 0; i < 10; i++ {
		if l.TryConsume(student) {
			admitted++
		}
	}

	// The minute tier is full again but the hour tier only had 5.25 tokens.
	assert.Equal(t, 5, admitted)
	assert.InDelta(t, 180.0, l.WaitTime(student).Seconds(), 0.5)
}

func TestMemoryLimiter_RejectionDoesNotConsume(t *testing.T) {
	clock := newFakeClock()
	policy := Policy{
		Student: []Tier{
			{Name: "minute", Capacity: 2, Period: time.Minute},
			{Name: "hour", Capacity: 3, Period: time.Hour},
		},
		Instructor: DefaultPolicy().Instructor,
	}
	l := NewMemoryLimiter(policy, WithClock(clock.Now))

	require.True(t, l.TryConsume(student))
	require.True(t, l.TryConsume(student))
	for i := 0; i < 5; i++ {
		assert.False(t, l.TryConsume(student))
	}

	clock.Advance(time.Minute)
	assert.True(t, l.TryConsume(student), "hour tier kept its third token")
	assert.False(t, l.TryConsume(student))
}

func TestMemoryLimiter_RoleSelectsTier(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(DefaultPolicy(), WithClock(clock.Now))
	instructor := Principal{UserID: "t1", Role: domain.UserRoleInstructor}
	admin := Principal{UserID: "a1", Role: domain.UserRoleAdmin}

	for i := 0; i < 50; i++ {
		require.True(t, l.TryConsume(instructor))
		require.True(t, l.TryConsume(admin))
	}
	assert.False(t, l.TryConsume(instructor))
	assert.False(t, l.TryConsume(admin))

	unknown := Principal{UserID: "u1", Role: "guest"}
	for i := 0; i < 10; i++ {
		require.True(t, l.TryConsume(unknown))
	}
	assert.False(t, l.TryConsume(unknown))
	assert.Equal(t, 3, l.Len())
}

func TestMemoryLimiter_PrincipalsIsolated(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(singleTierPolicy(1, time.Minute), WithClock(clock.Now))
	other := Principal{UserID: "s2", Role: domain.UserRoleStudent}

	assert.True(t, l.TryConsume(student))
	assert.False(t, l.TryConsume(student))
	assert.True(t, l.TryConsume(other))
}

func TestMemoryLimiter_ConcurrentConsume(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(singleTierPolicy(10, time.Minute), WithClock(clock.Now))

	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryConsume(student) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), admitted.Load())
}

func TestMemoryLimiter_Allow(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(singleTierPolicy(1, time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	d, err := l.Allow(ctx, student)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, d.Err())

	d, err = l.Allow(ctx, student)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, TierClassStudent, d.Class)
	assert.GreaterOrEqual(t, d.RetryAfterSeconds(), 60)
	assert.LessOrEqual(t, d.RetryAfterSeconds(), 61)
	assert.ErrorIs(t, d.Err(), ErrRateLimitExceeded)

	require.NoError(t, l.Clear(ctx, student))
	d, err = l.Allow(ctx, student)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, Decision{Allowed: true}.RetryAfterSeconds())
	assert.Equal(t, 1, Decision{RetryAfter: 10 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 2, Decision{RetryAfter: 1100 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 6, Decision{RetryAfter: 6 * time.Second}.RetryAfterSeconds())
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{}.Validate())
	assert.Error(t, singleTierPolicy(0, time.Minute).Validate())
	assert.Error(t, singleTierPolicy(1, 0).Validate())
	assert.Error(t, singleTierPolicy(1, 500*time.Microsecond).Validate())
	assert.NoError(t, singleTierPolicy(1, time.Millisecond).Validate())
}
