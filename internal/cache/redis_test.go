package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission_service/internal/domain"
	"submission_service/internal/service"
)

func setupCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, time.Minute, nil), mr
}

func sampleResponse() *service.SubmissionResponse {
	grade := 85
	return &service.SubmissionResponse{
		ID:        uuid.New(),
		StudentID: uuid.New(),
		ProjectID: uuid.New(),
		Content:   "Hello",
		Grade:     &grade,
		Status:    domain.SubmissionStatusGraded,
		Comments:  []service.CommentResponse{},
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Version:   3,
	}
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	resp := sampleResponse()

	_, ok := c.Get(ctx, resp.ID)
	assert.False(t, ok)

	c.Set(ctx, resp)
	got, ok := c.Get(ctx, resp.ID)
	require.True(t, ok)
	assert.Equal(t, resp, got)
	assert.Equal(t, time.Minute, mr.TTL("submission:"+resp.ID.String()))

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, resp.ID)
	assert.False(t, ok)
}

func TestRedisCache_Invalidate(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	resp := sampleResponse()

	c.Set(ctx, resp)
	c.Invalidate(ctx, resp.ID)

	_, ok := c.Get(ctx, resp.ID)
	assert.False(t, ok)
}

func TestRedisCache_SetKeepsNewerVersion(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	fresh := sampleResponse()
	fresh.Content = "new"
	fresh.Version = 2
	stale := *fresh
	stale.Content = "old"
	stale.Version = 1

	c.Set(ctx, fresh)
	c.Set(ctx, &stale)

	got, ok := c.Get(ctx, fresh.ID)
	require.True(t, ok)
	assert.Equal(t, "new", got.Content)
	assert.Equal(t, int64(2), got.Version)

	newer := *fresh
	newer.Content = "newer"
	newer.Version = 3
	c.Set(ctx, &newer)

	got, ok = c.Get(ctx, fresh.ID)
	require.True(t, ok)
	assert.Equal(t, "newer", got.Content)
}

func TestRedisCache_SetReplacesForeignEntry(t *testing.T) {
	c, mr := setupCache(t)
	resp := sampleResponse()
	require.NoError(t, mr.Set("submission:"+resp.ID.String(), "legacy"))

	c.Set(context.Background(), resp)

	got, ok := c.Get(context.Background(), resp.ID)
	require.True(t, ok)
	assert.Equal(t, resp.Version, got.Version)
}

func TestRedisCache_MalformedEntry(t *testing.T) {
	c, mr := setupCache(t)
	id := uuid.New()
	mr.HSet("submission:"+id.String(), "version", "1", "body", "{not json")

	_, ok := c.Get(context.Background(), id)
	assert.False(t, ok)
	assert.False(t, mr.Exists("submission:"+id.String()))
}

func TestRedisCache_RedisDown(t *testing.T) {
	c, mr := setupCache(t)
	mr.Close()
	resp := sampleResponse()

	assert.NotPanics(t, func() {
		c.Set(context.Background(), resp)
		c.Invalidate(context.Background(), resp.ID)
	})
	_, ok := c.Get(context.Background(), resp.ID)
	assert.False(t, ok)
}
