package locks

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wallforge/wallsim-backend/internal/logger"
)

// RedisLocker backs the lock contract with a SETNX key in the fast tier.
// Locks expire on their own so a crashed holder cannot wedge the keyspace.
type RedisLocker struct {
	rdb *goredis.Client
	log *logger.Logger
	ttl time.Duration
}

func NewRedisLocker(rdb *goredis.Client, ttl time.Duration, baseLog *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		rdb: rdb,
		log: baseLog.With("service", "RedisLocker"),
		ttl: ttl,
	}
}

func (l *RedisLocker) lockKey(key string) string {
	return "lock:" + key
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	acquired, err := l.rdb.SetNX(ctx, l.lockKey(key), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock %q: %w", key, err)
	}
	if acquired {
		l.log.Debug("Redis lock acquired", "key", key)
	}
	return acquired, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, l.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("redis unlock %q: %w", key, err)
	}
	return nil
}
