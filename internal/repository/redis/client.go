package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// ClientOptions represents connection options for the Redis client
type ClientOptions struct {
	// Redis URL (redis://[:password@]host:port/db)
	URL string

	// Connection pool size, 0 keeps the go-redis default
	PoolSize int

	// Timeout for the startup ping
	DialTimeout time.Duration
}

// DefaultClientOptions returns the default client options
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		URL:         "redis://localhost:6379/0",
		DialTimeout: 5 * time.Second,
	}
}

// NewClient creates a Redis client and verifies the connection
func NewClient(ctx context.Context, options *ClientOptions) (*goredis.Client, error) {
	if options == nil {
		options = DefaultClientOptions()
	}

	opts, err := goredis.ParseURL(options.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if options.PoolSize > 0 {
		opts.PoolSize = options.PoolSize
	}

	client := goredis.NewClient(opts)

	// Test connection
	timeout := options.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
