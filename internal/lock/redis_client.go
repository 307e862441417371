package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient는 플레이어 락에 필요한 Redis 작업을 정의합니다.
type RedisClient interface {
	// SetNX는 키가 존재하지 않는 경우에만 값을 설정합니다.
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)

	// Eval은 Lua 스크립트를 실행합니다.
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisClientAdapter는 go-redis 클라이언트를 RedisClient 인터페이스에 맞게 어댑터합니다.
type RedisClientAdapter struct {
	client redis.UniversalClient
}

// NewRedisClientAdapter는 새 Redis 클라이언트 어댑터를 생성합니다.
func NewRedisClientAdapter(client redis.UniversalClient) *RedisClientAdapter {
	return &RedisClientAdapter{
		client: client,
	}
}

// SetNX는 키가 존재하지 않는 경우에만 값을 설정합니다.
func (a *RedisClientAdapter) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return a.client.SetNX(ctx, key, value, expiration).Result()
}

// Eval은 Lua 스크립트를 실행합니다.
func (a *RedisClientAdapter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return a.client.Eval(ctx, script, keys, args...).Result()
}
