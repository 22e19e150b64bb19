package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableCache(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client, "test:")
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())
	assert.Equal(t, "sms:", cfg.KeyPrefix)
}

func TestCache_Key(t *testing.T) {
	c := unreachableCache(t)
	assert.Equal(t, "test:dashboard:board", c.Key(keyBoard))
	assert.Equal(t, "test:lock:edit-session", c.Key(keyEditLock))
}

func TestCache_SetRejectsBadInput(t *testing.T) {
	c := unreachableCache(t)
	ctx := t.Context()

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Set(ctx, "k", make(chan int), time.Minute), ErrCacheSerialization)
	assert.ErrorIs(t, c.Get(ctx, "", new(int)), ErrCacheKeyEmpty)
}

func TestNewCache_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 1
	cfg.MaxRetries = -1
	cfg.DialTimeout = 200 * time.Millisecond

	_, err := NewCache(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestBoardCache_SaveNil(t *testing.T) {
	b := NewBoardCache(unreachableCache(t), 0)
	assert.Equal(t, DefaultBoardTTL, b.ttl)
	assert.ErrorIs(t, b.SaveBoard(t.Context(), nil), ErrCacheNilValue)
}

func TestEditLock_DefaultsAndErrors(t *testing.T) {
	l := NewEditLock(unreachableCache(t), 0)
	assert.Equal(t, DefaultLockTTL, l.ttl)

	_, err := l.Acquire(t.Context(), "session-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotHeld)
}
