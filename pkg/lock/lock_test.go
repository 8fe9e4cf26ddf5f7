package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
)

// fakeRedis keeps one key in memory and emulates the release script
type fakeRedis struct {
	values  map[string]string
	ttls    map[string]time.Duration
	failSet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.failSet != nil {
		return redis.NewBoolResult(false, f.failSet)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLockAcquireRelease(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	first := NewRedisLock(rdb, "twpipeline:run", time.Hour, nil)
	second := NewRedisLock(rdb, "twpipeline:run", time.Hour, nil)

	require.NoError(t, first.Acquire(ctx))
	assert.Equal(t, time.Hour, rdb.ttls["twpipeline:run"])
	assert.ErrorIs(t, second.Acquire(ctx), ErrHeld)

	require.NoError(t, first.Release(ctx))
	assert.Empty(t, rdb.values)

	require.NoError(t, second.Acquire(ctx))
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	log := logger.NewTestLogger()
	l := NewRedisLock(rdb, "k", time.Minute, log)

	require.NoError(t, l.Acquire(ctx))
	// lease expired and someone else took it
	rdb.values["k"] = "other-token"

	require.NoError(t, l.Release(ctx))
	assert.Equal(t, "other-token", rdb.values["k"])
	assert.True(t, log.HasMessage("Run lock expired before release"))
}

func TestRedisLockErrors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failSet = errors.New("connection refused")
	l := NewRedisLock(rdb, "k", time.Minute, nil)

	err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrHeld)

	// releasing a lock never acquired is a no-op
	assert.NoError(t, l.Release(context.Background()))
}

func TestOpen(t *testing.T) {
	l, closer, err := Open(config.LockConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, l)
	assert.NoError(t, closer())
	assert.NoError(t, l.Acquire(context.Background()))

	_, _, err = Open(config.LockConfig{RedisURL: "not a url"}, nil)
	assert.Error(t, err)

	l, closer, err = Open(config.LockConfig{RedisURL: "redis://localhost:6379/0", Key: "k", TTL: time.Minute}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RedisLock{}, l)
	assert.NoError(t, closer())
}
