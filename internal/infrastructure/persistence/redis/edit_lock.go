package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDIT LOCK
// One key holds the id of the edit session that owns the deployment.
// ══════════════════════════════════════════════════════════════════════════════

// ErrLockNotHeld is returned by Extend when the owner lost the lock.
var ErrLockNotHeld = errors.New("edit lock: not held by owner")

// DefaultLockTTL matches the default idle session lifetime.
const DefaultLockTTL = 30 * time.Minute

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// EditLock is a single-owner lock with expiry.
type EditLock struct {
	cache *Cache
	ttl   time.Duration
}

// NewEditLock creates an EditLock. A non-positive ttl uses DefaultLockTTL.
func NewEditLock(cache *Cache, ttl time.Duration) *EditLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &EditLock{cache: cache, ttl: ttl}
}

// Acquire takes the lock for owner. Re-acquiring an owned lock refreshes it.
func (l *EditLock) Acquire(ctx context.Context, owner string) (bool, error) {
	key := l.cache.Key(keyEditLock)
	ok, err := l.cache.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire edit lock: %w", err)
	}
	if ok {
		return true, nil
	}
	if err := l.Extend(ctx, owner); err != nil {
		if errors.Is(err, ErrLockNotHeld) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Extend resets the expiry while owner still holds the lock.
func (l *EditLock) Extend(ctx context.Context, owner string) error {
	n, err := extendScript.Run(ctx, l.cache.client,
		[]string{l.cache.Key(keyEditLock)}, owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend edit lock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Release deletes the lock if owner holds it. Releasing a lock held by
// someone else is a no-op.
func (l *EditLock) Release(ctx context.Context, owner string) error {
	if err := releaseScript.Run(ctx, l.cache.client, []string{l.cache.Key(keyEditLock)}, owner).Err(); err != nil {
		return fmt.Errorf("release edit lock: %w", err)
	}
	return nil
}

// Holder returns the current owner, or "" when the lock is free.
func (l *EditLock) Holder(ctx context.Context) (string, error) {
	owner, err := l.cache.client.Get(ctx, l.cache.Key(keyEditLock)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read edit lock: %w", err)
	}
	return owner, nil
}
