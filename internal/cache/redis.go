package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"submission_service/internal/service"
	"submission_service/pkg/logging"
)

const DefaultTTL = 5 * time.Minute

// setIfNewerScript stores an entry unless the cached one carries the same
// or a higher version. KEYS[1]: entry hash. ARGV: version, body, ttl in ms.
var setIfNewerScript = redis.NewScript(`
local current = redis.pcall('HGET', KEYS[1], 'version')
if type(current) == 'string' and tonumber(current) ~= nil and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'body', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisCache stores submission projections as a hash of version and JSON
// body. Redis errors are logged and treated as misses so reads fall back
// to storage.
type RedisCache struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *logging.Logger
}

func NewRedisCache(rdb redis.UniversalClient, ttl time.Duration, logger *logging.Logger) *RedisCache {
	if ttl < time.Millisecond {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "submission", logger: logger}
}

func (r *RedisCache) key(id uuid.UUID) string {
	return r.prefix + ":" + id.String()
}

func (r *RedisCache) Get(ctx context.Context, id uuid.UUID) (*service.SubmissionResponse, bool) {
	val, err := r.rdb.HGet(ctx, r.key(id), "body").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn(ctx, "Cache read failed", zap.String("submission_id", id.String()), zap.Error(err))
		return nil, false
	}

	var resp service.SubmissionResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		r.logger.Warn(ctx, "Dropping malformed cache entry", zap.String("submission_id", id.String()), zap.Error(err))
		r.Invalidate(ctx, id)
		return nil, false
	}
	return &resp, true
}

func (r *RedisCache) Set(ctx context.Context, submission *service.SubmissionResponse) {
	data, err := json.Marshal(submission)
	if err != nil {
		return
	}
	err = setIfNewerScript.Run(ctx, r.rdb, []string{r.key(submission.ID)},
		submission.Version, data, r.ttl.Milliseconds(),
	).Err()
	if err != nil {
		r.logger.Warn(ctx, "Cache write failed", zap.String("submission_id", submission.ID.String()), zap.Error(err))
		// An entry that could not be replaced must not outlive this write.
		r.Invalidate(ctx, submission.ID)
	}
}

func (r *RedisCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		r.logger.Warn(ctx, "Cache invalidation failed", zap.String("submission_id", id.String()), zap.Error(err))
	}
}
