package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/batch-allocation/internal/port"
)

const defaultIdempotencyTTL = 24 * time.Hour

type RedisAdapter struct {
	client         *redis.Client
	redsync        *redsync.Redsync
	idempotencyTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, idempotencyTTL time.Duration) *RedisAdapter {
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyTTL
	}
	return &RedisAdapter{
		client:         client,
		redsync:        redsync.New(goredis.NewPool(client)),
		idempotencyTTL: idempotencyTTL,
	}
}

// redisLock wraps a held redsync mutex; unlocking checks the mutex value so
// an expired holder cannot drop a lock someone else has since taken.
type redisLock struct {
	mutex *redsync.Mutex
}

func (l *redisLock) Unlock(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if !ok {
		if err != nil {
			return fmt.Errorf("%w: %w", port.ErrLockNotHeld, err)
		}
		return port.ErrLockNotHeld
	}
	return err
}

func (r *RedisAdapter) AcquireLock(ctx context.Context, key string, opts port.LockOptions) (port.Lock, error) {
	tries := opts.Tries
	if tries < 1 {
		tries = 1
	}

	mutex := r.redsync.NewMutex(key,
		redsync.WithExpiry(opts.Expiry),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isLockContention(err) {
			return nil, port.ErrLockNotAcquired
		}
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	return &redisLock{mutex: mutex}, nil
}

// redsync reports a held lock either as ErrFailed or as a "lock already
// taken" error listing the nodes that refused.
func isLockContention(err error) bool {
	return errors.Is(err, redsync.ErrFailed) || strings.Contains(err.Error(), "lock already taken")
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
