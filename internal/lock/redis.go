package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/diewo77/go-quotations/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisLocker is a Locker shared by every replica talking to the same Redis.
type RedisLocker struct {
	client    *redislock.Client
	namespace string
	ttl       time.Duration
	retry     redislock.RetryStrategy
	logger    *logrus.Logger
}

// NewRedisLocker builds a RedisLocker. Keys are stored as "<namespace>:<key>".
// ttl bounds how long a crashed holder can block others; acquisition retries
// every 50ms until ctx is done or ttl has elapsed.
func NewRedisLocker(rdb redis.UniversalClient, namespace string, ttl time.Duration, logger *logrus.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	step := 50 * time.Millisecond
	return &RedisLocker{
		client:    redislock.New(rdb),
		namespace: namespace,
		ttl:       ttl,
		retry:     redislock.LimitRetry(redislock.LinearBackoff(step), int(ttl/step)),
		logger:    logger,
	}
}

// Lock obtains the Redis lock for key.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := r.namespace + ":" + key
	l, err := r.client.Obtain(ctx, lockKey, r.ttl, &redislock.Options{RetryStrategy: r.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		logging.LogError(r.logger, "lock", "RedisLocker.Lock", "could not obtain lock", lockKey, err)
		return nil, &apperr.ConcurrencyConflictError{Resource: key, Err: err}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, &apperr.ConcurrencyConflictError{Resource: key, Err: ctx.Err()}
		}
		logging.LogError(r.logger, "lock", "RedisLocker.Lock", "error obtaining lock", lockKey, err)
		return nil, &apperr.PersistenceError{Op: "obtain lock " + lockKey, Err: err}
	}
	return func() {
		// Release must run even if the caller's ctx is already cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logging.LogError(r.logger, "lock", "RedisLocker.Release", "error releasing lock", lockKey, err)
		}
	}, nil
}
