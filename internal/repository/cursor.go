package repository

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Cursor hands out a monotonically increasing position for round-robin assignment.
type Cursor interface {
	Next(ctx context.Context) (uint64, error)
}

// AtomicCursor is a process-local cursor starting at zero.
type AtomicCursor struct {
	n atomic.Uint64
}

// Next returns the current position and advances it.
func (c *AtomicCursor) Next(context.Context) (uint64, error) {
	return c.n.Add(1) - 1, nil
}

// CounterClient is the part of a Redis client the shared cursor needs.
type CounterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisCursor shares the round-robin position across instances.
type RedisCursor struct {
	client CounterClient
	key    string
}

// NewRedisCursor builds a cursor stored under key.
func NewRedisCursor(client CounterClient, key string) *RedisCursor {
	return &RedisCursor{client: client, key: key}
}

// Next increments the shared counter; the first call returns zero.
func (c *RedisCursor) Next(ctx context.Context) (uint64, error) {
	n, err := c.client.Incr(ctx, c.key).Uint64()
	if err != nil {
		return 0, fmt.Errorf("advance round-robin cursor: %w", err)
	}
	return n - 1, nil
}
