// Package redis provides the Redis client component.
package redis

import (
	"context"
	"fmt"

	options "github.com/itissonu/genaiquery/pkg/options/redis"
	goredis "github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client.
//
// Example usage:
//
//	opts := options.NewOptions()
//	opts.Host = "localhost"
//
//	client, err := New(context.Background(), opts)
//	if err != nil {
//	    log.Fatalf("failed to create Redis client: %v", err)
//	}
//	defer client.Close()
type Client struct {
	client *goredis.Client
	opts   *options.Options
}

// New creates a new Redis client from the provided options.
// The context bounds the initial ping verification.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis options: %w", err)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{
		client: rdb,
		opts:   opts,
	}, nil
}

// Ping checks if the connection to Redis is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection gracefully.
func (c *Client) Close() error {
	return c.client.Close()
}

// Client returns the underlying go-redis client.
func (c *Client) Client() *goredis.Client {
	return c.client
}
