package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript evaluates every tier of one principal atomically.
// KEYS: one hash per tier. ARGV[1]: now in ms, then per tier: capacity,
// tokens per ms, ttl in ms. Returns {allowed, wait_ms}.
var tokenBucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local tokens = {}
local wait = 0
for i = 1, #KEYS do
	local base = 2 + (i - 1) * 3
	local capacity = tonumber(ARGV[base])
	local rate = tonumber(ARGV[base + 1])
	local state = redis.call('HMGET', KEYS[i], 'tokens', 'ts')
	local t = tonumber(state[1])
	local ts = tonumber(state[2])
	if t == nil or ts == nil then
		t = capacity
		ts = now
	end
	if now > ts then
		t = math.min(capacity, t + (now - ts) * rate)
	end
	tokens[i] = t
	if t < 1 then
		local w = math.ceil((1 - t) / rate)
		if w > wait then
			wait = w
		end
	end
end
if wait > 0 then
	return {0, wait}
end
for i = 1, #KEYS do
	local ttl = tonumber(ARGV[4 + (i - 1) * 3])
	redis.call('HSET', KEYS[i], 'tokens', tostring(tokens[i] - 1), 'ts', tostring(now))
	redis.call('PEXPIRE', KEYS[i], ttl)
end
return {1, 0}
`)

// RedisLimiter shares buckets between service replicas. A bucket key
// expires only once every tier would have refilled completely, so expiry
// never changes an outcome.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	policy Policy
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisLimiter)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) {
		l.now = now
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) {
		l.prefix = prefix
	}
}

func NewRedisLimiter(rdb redis.UniversalClient, policy Policy, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		rdb:    rdb,
		policy: policy,
		prefix: "ratelimit",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLimiter) keys(class TierClass, userID string) []string {
	tiers := l.policy.Tiers(class)
	keys := make([]string, len(tiers))
	for i, t := range tiers {
		keys[i] = fmt.Sprintf("%s:{%s}:%s", l.prefix, bucketKey(class, userID), t.Name)
	}
	return keys
}

func (l *RedisLimiter) Allow(ctx context.Context, p Principal) (Decision, error) {
	class := l.policy.ClassFor(p.Role)
	tiers := l.policy.Tiers(class)

	args := make([]any, 0, 1+len(tiers)*3)
	args = append(args, l.now().UnixMilli())
	for _, t := range tiers {
		perMs := float64(t.Capacity) / float64(t.Period.Milliseconds())
		args = append(args,
			t.Capacity,
			strconv.FormatFloat(perMs, 'g', -1, 64),
			t.Period.Milliseconds(),
		)
	}

	res, err := tokenBucketScript.Run(ctx, l.rdb, l.keys(class, p.UserID), args...).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("unexpected rate limit reply: %v", res)
	}

	if res[0] == 1 {
		return Decision{Allowed: true, Class: class}, nil
	}
	return Decision{
		Allowed:    false,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		Class:      class,
	}, nil
}

func (l *RedisLimiter) Clear(ctx context.Context, p Principal) error {
	class := l.policy.ClassFor(p.Role)
	if err := l.rdb.Del(ctx, l.keys(class, p.UserID)...).Err(); err != nil {
		return fmt.Errorf("failed to clear rate limit: %w", err)
	}
	return nil
}
