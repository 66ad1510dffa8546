package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmflow/crm-automation/internal/repository"
)

// fakeRedis keeps string keys in memory and runs the lock release script's
// compare-and-delete for EVAL and EVALSHA.
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	counter map[string]int64
	incrErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, counter: map[string]int64{}}
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.counter[key]++
	return redis.NewIntResult(f.counter[key], nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.values[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) compareAndDelete(keys []string, args []interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected script arguments"))
	}
	if current, ok := f.values[keys[0]]; ok && current == args[0] {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func (f *fakeRedis) value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeRedis) overwrite(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func TestRedisCursorStartsAtZero(t *testing.T) {
	ctx := context.Background()
	cursor := repository.NewRedisCursor(newFakeRedis(), "crm:assignment:cursor")

	for want := uint64(0); want < 3; want++ {
		got, err := cursor.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRedisCursorWrapsClientError(t *testing.T) {
	client := newFakeRedis()
	client.incrErr = errors.New("connection refused")
	cursor := repository.NewRedisCursor(client, "crm:assignment:cursor")

	_, err := cursor.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.incrErr)
	assert.Contains(t, err.Error(), "advance round-robin cursor")
}

func TestAtomicCursorStartsAtZero(t *testing.T) {
	var cursor repository.AtomicCursor

	first, err := cursor.Next(context.Background())
	require.NoError(t, err)
	second, err := cursor.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(1), second)
}

func TestRedisLockerIsExclusive(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	locker := repository.NewRedisLocker(client, "crm:sla:sweep-lock")

	unlock, ok, err := locker.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, unlock(ctx))
	_, held := client.value("crm:sla:sweep-lock")
	assert.False(t, held)

	_, ok, err = locker.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerReleaseLeavesForeignHolder(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	locker := repository.NewRedisLocker(client, "crm:sla:sweep-lock")

	unlock, ok, err := locker.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// The lease expired and another instance took the lock.
	client.overwrite("crm:sla:sweep-lock", "other-instance")

	require.NoError(t, unlock(ctx))
	holder, held := client.value("crm:sla:sweep-lock")
	assert.True(t, held)
	assert.Equal(t, "other-instance", holder)
}
