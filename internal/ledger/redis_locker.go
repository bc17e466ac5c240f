package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/config"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	// Strateji sayaç tuttuğu için her Obtain'e yenisi verilir
	retry func() redislock.RetryStrategy
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry: func() redislock.RetryStrategy {
			return redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 20)
		},
	}
}

func lockKey(id uint) string {
	return fmt.Sprintf("lock:item:%d", id)
}

// Acquire: Kilitlerden biri alınamazsa o ana kadar alınanlar bırakılır.
func (l *RedisLocker) Acquire(ctx context.Context, ids []uint) (func(), error) {
	obtained := make([]*redislock.Lock, 0, len(ids))
	release := func() {
		for i := len(obtained) - 1; i >= 0; i-- {
			if err := obtained[i].Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				config.LogError(config.GetLogger(), "ledger", "RedisLocker.Acquire", "kilit bırakılamadı", obtained[i].Key(), err)
			}
		}
	}

	for _, id := range ids {
		lock, err := l.client.Obtain(ctx, lockKey(id), l.ttl, &redislock.Options{RetryStrategy: l.retry()})
		if errors.Is(err, redislock.ErrNotObtained) {
			release()
			return nil, &apperror.ConcurrencyConflictError{Reason: fmt.Sprintf("kalem kilidi alınamadı (item_id: %d)", id)}
		}
		if err != nil {
			release()
			return nil, fmt.Errorf("redis kilidi alınırken hata (item_id: %d): %w", id, err)
		}
		obtained = append(obtained, lock)
	}
	return release, nil
}
