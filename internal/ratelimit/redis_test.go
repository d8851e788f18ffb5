package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission_service/internal/domain"
)

func newRedisLimiter(t *testing.T, policy Policy, clock *fakeClock) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLimiter(rdb, policy, WithRedisClock(clock.Now)), mr
}

func TestRedisLimiter_CapacityThenRefill(t *testing.T) {
	clock := newFakeClock()
	l, _ := newRedisLimiter(t, singleTierPolicy(10, time.Minute), clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := l.Allow(ctx, student)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i+1)
	}

	d, err := l.Allow(ctx, student)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, 6000, d.RetryAfter.Milliseconds(), 2)
	assert.GreaterOrEqual(t, d.RetryAfterSeconds(), 6)
	assert.LessOrEqual(t, d.RetryAfterSeconds(), 7)

	clock.Advance(d.RetryAfter + time.Millisecond)
	d, err = l.Allow(ctx, student)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_BothTiersMustHaveCapacity(t *testing.T) {
	clock := newFakeClock()
	policy := Policy{
		Student: []Tier{
			{Name: "minute", Capacity: 10, Period: time.Minute},
			{Name: "hour", Capacity: 12, Period: time.Hour},
		},
		Instructor: DefaultPolicy().Instructor,
	}
	l, mr := newRedisLimiter(t, policy, clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := l.Allow(ctx, student)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, student)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "minute tier exhausted")

	clock.Advance(time.Minute)
	for i := 0; i < 2; i++ {
		d, err = l.Allow(ctx, student)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err = l.Allow(ctx, student)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "hour tier exhausted while minute tier has tokens")
	assert.Greater(t, d.RetryAfter, time.Minute)

	assert.True(t, mr.Exists("ratelimit:{student:s1}:minute"))
	assert.True(t, mr.Exists("ratelimit:{student:s1}:hour"))
}

func TestRedisLimiter_Clear(t *testing.T) {
	clock := newFakeClock()
	l, mr := newRedisLimiter(t, singleTierPolicy(1, time.Minute), clock)
	ctx := context.Background()

	d, err := l.Allow(ctx, student)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	d, err = l.Allow(ctx, student)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	require.NoError(t, l.Clear(ctx, student))
	assert.False(t, mr.Exists("ratelimit:{student:s1}:minute"))

	d, err = l.Allow(ctx, student)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_InstructorClass(t *testing.T) {
	clock := newFakeClock()
	l, mr := newRedisLimiter(t, DefaultPolicy(), clock)

	d, err := l.Allow(context.Background(), Principal{UserID: "t1", Role: domain.UserRoleInstructor})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, TierClassInstructor, d.Class)
	assert.True(t, mr.Exists("ratelimit:{instructor:t1}:hour"))
}

func TestRedisLimiter_RedisDown(t *testing.T) {
	clock := newFakeClock()
	l, mr := newRedisLimiter(t, DefaultPolicy(), clock)
	mr.Close()

	_, err := l.Allow(context.Background(), student)
	assert.Error(t, err)
}
