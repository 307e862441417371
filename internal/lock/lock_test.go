package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"citybuilder/internal/domain"
	"citybuilder/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupLocker(t *testing.T, opts Options) (*RedisLocker, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := metrics.New()
	return NewRedisLocker(NewRedisClientAdapter(client), opts, zaptest.NewLogger(t), m), mr, m
}

func fastOptions() Options {
	return Options{
		TTL:           time.Second,
		WaitTimeout:   60 * time.Millisecond,
		RetryInterval: 5 * time.Millisecond,
	}
}

func TestAcquireAndRelease(t *testing.T) {
	locker, mr, _ := setupLocker(t, fastOptions())
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "p1")
	require.NoError(t, err)
	guard := held.(*Guard)

	assert.Equal(t, "lock:player:p1", guard.Key())
	val, err := mr.Get("lock:player:p1")
	require.NoError(t, err)
	assert.Equal(t, guard.token, val)
	assert.Equal(t, time.Second, mr.TTL("lock:player:p1"))

	guard.Release(ctx)
	assert.False(t, mr.Exists("lock:player:p1"))

	// 두 번째 해제는 아무 작업도 하지 않음
	guard.Release(ctx)
}

func TestAcquireTimesOutWithLocked(t *testing.T) {
	locker, _, m := setupLocker(t, fastOptions())
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "p1")
	require.NoError(t, err)
	defer held.Release(ctx)

	start := time.Now()
	_, err = locker.Acquire(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrLocked)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)

	expected := `
# HELP citybuilder_lock_acquire_total Player lock acquisition attempts by outcome.
# TYPE citybuilder_lock_acquire_total counter
citybuilder_lock_acquire_total{result="acquired"} 1
citybuilder_lock_acquire_total{result="contended"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "citybuilder_lock_acquire_total"))
}

func TestDifferentPlayersDoNotContend(t *testing.T) {
	locker, _, _ := setupLocker(t, fastOptions())
	ctx := context.Background()

	a, err := locker.Acquire(ctx, "p1")
	require.NoError(t, err)
	defer a.Release(ctx)

	b, err := locker.Acquire(ctx, "p2")
	require.NoError(t, err)
	b.Release(ctx)
}

func TestAcquireAfterRelease(t *testing.T) {
	opts := fastOptions()
	opts.WaitTimeout = time.Second
	locker, _, _ := setupLocker(t, opts)
	ctx := context.Background()

	first, err := locker.Acquire(ctx, "p1")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		first.Release(ctx)
	}()

	second, err := locker.Acquire(ctx, "p1")
	require.NoError(t, err)
	second.Release(ctx)
}

func TestExpiredGuardDoesNotReleaseNewOwner(t *testing.T) {
	locker, mr, _ := setupLocker(t, fastOptions())
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "p1")
	require.NoError(t, err)

	// TTL 만료 후 다른 요청이 락을 획득
	mr.FastForward(2 * time.Second)
	fresh, err := locker.Acquire(ctx, "p1")
	require.NoError(t, err)

	stale.Release(ctx)
	val, err := mr.Get("lock:player:p1")
	require.NoError(t, err)
	assert.Equal(t, fresh.(*Guard).token, val)

	fresh.Release(ctx)
	assert.False(t, mr.Exists("lock:player:p1"))
}

func TestAcquireCanceledWhileWaiting(t *testing.T) {
	opts := fastOptions()
	opts.WaitTimeout = 5 * time.Second
	locker, _, _ := setupLocker(t, opts)

	held, err := locker.Acquire(context.Background(), "p1")
	require.NoError(t, err)
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	got, err := locker.Acquire(ctx, "p1")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.NotErrorIs(t, err, domain.ErrLocked)
}

func TestReleaseWithCanceledContext(t *testing.T) {
	locker, mr, _ := setupLocker(t, fastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	held, err := locker.Acquire(ctx, "p1")
	require.NoError(t, err)

	cancel()
	held.Release(ctx)
	assert.False(t, mr.Exists("lock:player:p1"))
}

func TestReleaseFailureIsSwallowed(t *testing.T) {
	locker, mr, m := setupLocker(t, fastOptions())

	held, err := locker.Acquire(context.Background(), "p1")
	require.NoError(t, err)

	mr.Close()
	assert.NotPanics(t, func() { held.Release(context.Background()) })

	expected := `
# HELP citybuilder_lock_release_failures_total Player lock releases that failed or found another owner.
# TYPE citybuilder_lock_release_failures_total counter
citybuilder_lock_release_failures_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "citybuilder_lock_release_failures_total"))
}

func TestMutualExclusion(t *testing.T) {
	opts := fastOptions()
	opts.WaitTimeout = 5 * time.Second
	opts.RetryInterval = time.Millisecond
	locker, _, _ := setupLocker(t, opts)

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held, err := locker.Acquire(context.Background(), "p1")
			if !assert.NoError(t, err) {
				return
			}
			defer held.Release(context.Background())

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxSeen))
}
