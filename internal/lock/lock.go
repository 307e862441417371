// Package lock provides the per-player distributed critical section.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"citybuilder/internal/domain"
	"citybuilder/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultTTL는 락이 자동으로 만료되기까지의 시간입니다.
	DefaultTTL = 8 * time.Second
	// DefaultWaitTimeout는 락 획득을 기다리는 최대 시간입니다.
	DefaultWaitTimeout = 2500 * time.Millisecond
	// DefaultRetryInterval는 락 획득 재시도 간격입니다.
	DefaultRetryInterval = 35 * time.Millisecond

	releaseTimeout = 2 * time.Second
)

// releaseScript는 토큰이 일치할 때만 락 키를 삭제합니다.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// Options는 플레이어 락 설정입니다.
type Options struct {
	TTL           time.Duration
	WaitTimeout   time.Duration
	RetryInterval time.Duration
	KeyPrefix     string
}

// DefaultOptions는 기본 락 설정을 반환합니다.
func DefaultOptions() Options {
	return Options{
		TTL:           DefaultTTL,
		WaitTimeout:   DefaultWaitTimeout,
		RetryInterval: DefaultRetryInterval,
		KeyPrefix:     "lock:player:",
	}
}

// RedisLocker는 Redis 기반 플레이어 락 관리자입니다.
// 같은 플레이어 ID에 대해 동시에 하나의 임계 구역만 허용합니다.
type RedisLocker struct {
	client  RedisClient
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRedisLocker는 새 Redis 플레이어 락 관리자를 생성합니다.
func NewRedisLocker(client RedisClient, opts Options, logger *zap.Logger, m *metrics.Metrics) *RedisLocker {
	defaults := DefaultOptions()
	if opts.TTL <= 0 {
		opts.TTL = defaults.TTL
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaults.WaitTimeout
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaults.RetryInterval
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaults.KeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:  client,
		opts:    opts,
		logger:  logger,
		metrics: m,
	}
}

// Key는 플레이어의 락 키를 반환합니다.
func (l *RedisLocker) Key(playerID string) string {
	return l.opts.KeyPrefix + playerID
}

// Acquire는 플레이어 락을 획득합니다.
// 대기 시간을 초과하면 domain.ErrLocked를, 대기 중 컨텍스트가 취소되면
// 컨텍스트 오류를 반환하며 두 경우 모두 락을 보유하지 않습니다.
func (l *RedisLocker) Acquire(ctx context.Context, playerID string) (domain.PlayerLock, error) {
	key := l.Key(playerID)
	token := uuid.NewString()
	start := time.Now()
	deadline := start.Add(l.opts.WaitTimeout)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// 요청이 서버에 도달했을 수 있으므로 정리 시도
				l.abandon(key, token)
				l.metrics.ObserveLockAcquire(metrics.LockCanceled, time.Since(start))
				return nil, fmt.Errorf("acquire lock %s: %w", key, ctxErr)
			}
			l.metrics.ObserveLockAcquire(metrics.LockError, time.Since(start))
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			l.metrics.ObserveLockAcquire(metrics.LockAcquired, time.Since(start))
			return &Guard{
				locker:     l,
				key:        key,
				token:      token,
				acquiredAt: time.Now(),
			}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.metrics.ObserveLockAcquire(metrics.LockContended, time.Since(start))
			l.logger.Debug("player lock contended",
				zap.String("key", key),
				zap.Duration("waited", time.Since(start)),
			)
			return nil, domain.ErrLocked
		}

		// 잠시 대기 후 재시도
		sleep := l.opts.RetryInterval
		if sleep > remaining {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.metrics.ObserveLockAcquire(metrics.LockCanceled, time.Since(start))
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

// abandon은 취소된 획득 시도가 남겼을 수 있는 락을 해제합니다.
func (l *RedisLocker) abandon(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if _, err := l.compareAndDelete(ctx, key, token); err != nil {
		l.logger.Warn("failed to clean up abandoned lock", zap.String("key", key), zap.Error(err))
	}
}

func (l *RedisLocker) compareAndDelete(ctx context.Context, key, token string) (bool, error) {
	result, err := l.client.Eval(ctx, releaseScript, []string{key}, token)
	if err != nil {
		return false, err
	}
	n, ok := result.(int64)
	return ok && n > 0, nil
}

// Guard는 획득한 플레이어 락입니다.
type Guard struct {
	locker     *RedisLocker
	key        string
	token      string
	acquiredAt time.Time
	once       sync.Once
}

// Key는 락 키를 반환합니다.
func (g *Guard) Key() string {
	return g.key
}

// Release는 락을 해제합니다.
// 여러 번 호출해도 안전하며, 해제 실패는 로그만 남기고 TTL 만료에 맡깁니다.
// 호출자의 컨텍스트가 이미 취소되었더라도 해제를 시도합니다.
func (g *Guard) Release(ctx context.Context) {
	g.once.Do(func() {
		l := g.locker
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		released, err := l.compareAndDelete(releaseCtx, g.key, g.token)
		held := time.Since(g.acquiredAt)
		switch {
		case err != nil:
			l.metrics.LockReleaseFailed()
			l.logger.Warn("failed to release player lock",
				zap.String("key", g.key),
				zap.Duration("held", held),
				zap.Error(err),
			)
		case !released:
			// TTL이 만료되어 다른 소유자가 락을 가져간 경우
			l.metrics.LockReleaseFailed()
			l.logger.Warn("player lock expired before release",
				zap.String("key", g.key),
				zap.Duration("held", held),
				zap.Duration("ttl", l.opts.TTL),
			)
		}
	})
}
