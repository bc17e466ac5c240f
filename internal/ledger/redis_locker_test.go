package ledger

import (
	"context"
	"testing"
	"time"

	"imalat-backend/internal/apperror"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	l := NewRedisLocker(rdb, 5*time.Second)
	l.retry = redislock.NoRetry
	return l, mr
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, []uint{1, 2})
	require.NoError(t, err)
	assert.True(t, mr.Exists(lockKey(1)))
	assert.True(t, mr.Exists(lockKey(2)))

	release()
	assert.False(t, mr.Exists(lockKey(1)))
	assert.False(t, mr.Exists(lockKey(2)))
}

func TestRedisLockerConflictReleasesPartial(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	holder, err := l.Acquire(ctx, []uint{2})
	require.NoError(t, err)
	defer holder()

	_, err = l.Acquire(ctx, []uint{1, 2})
	assert.Equal(t, apperror.CodeConcurrencyConflict, apperror.CodeOf(err))

	// 1 alınmıştı, çakışmadan sonra bırakılmış olmalı
	assert.False(t, mr.Exists(lockKey(1)))
	assert.True(t, mr.Exists(lockKey(2)))
}
