package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/batch-allocation/internal/port"
)

type localLock struct {
	token     string
	expiresAt time.Time
}

// LocalCache is the single-process counterpart of RedisAdapter and mirrors
// its lock semantics without a Redis server.
type LocalCache struct {
	mu             sync.Mutex
	locks          map[string]localLock
	keys           map[string]time.Time
	idempotencyTTL time.Duration
	now            func() time.Time
}

func NewLocalCache(idempotencyTTL time.Duration) *LocalCache {
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyTTL
	}
	return &LocalCache{
		locks:          make(map[string]localLock),
		keys:           make(map[string]time.Time),
		idempotencyTTL: idempotencyTTL,
		now:            time.Now,
	}
}

type localLockHandle struct {
	cache *LocalCache
	key   string
	token string
}

func (h *localLockHandle) Unlock(ctx context.Context) error {
	c := h.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[h.key]
	if !ok || l.token != h.token || !c.now().Before(l.expiresAt) {
		return port.ErrLockNotHeld
	}
	delete(c.locks, h.key)
	return nil
}

func (c *LocalCache) AcquireLock(ctx context.Context, key string, opts port.LockOptions) (port.Lock, error) {
	tries := opts.Tries
	if tries < 1 {
		tries = 1
	}

	for i := 0; i < tries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}

		if token, ok := c.tryLock(key, opts.Expiry); ok {
			return &localLockHandle{cache: c, key: key, token: token}, nil
		}
	}
	return nil, port.ErrLockNotAcquired
}

func (c *LocalCache) tryLock(key string, expiry time.Duration) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if l, ok := c.locks[key]; ok && now.Before(l.expiresAt) {
		return "", false
	}

	token := uuid.NewString()
	c.locks[key] = localLock{token: token, expiresAt: now.Add(expiry)}
	return token, true
}

func (c *LocalCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.keys[key] = now.Add(c.idempotencyTTL)
	return true, nil
}

func (c *LocalCache) ClearIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.keys, key)
	return nil
}
