package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/redis/go-redis/v9"
)

// DefaultSequenceKeyPrefix namespaces sequence counters in redis
const DefaultSequenceKeyPrefix = "billing:sequence:"

// RedisSequenceCounter hands out values with INCR, which is atomic across
// every client of the same redis
type RedisSequenceCounter struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisSequenceCounter creates a redis-backed counter
func NewRedisSequenceCounter(client redis.UniversalClient, keyPrefix string) *RedisSequenceCounter {
	if keyPrefix == "" {
		keyPrefix = DefaultSequenceKeyPrefix
	}
	return &RedisSequenceCounter{client: client, keyPrefix: keyPrefix}
}

// Next increments the named counter and returns the new value
func (c *RedisSequenceCounter) Next(ctx context.Context, name string) (int64, error) {
	v, err := c.client.Incr(ctx, c.keyPrefix+name).Result()
	if err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, err)
	}
	return v, nil
}

// InMemorySequenceCounter is a process-local counter for single-instance
// development setups and tests
type InMemorySequenceCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewInMemorySequenceCounter creates an empty counter
func NewInMemorySequenceCounter() *InMemorySequenceCounter {
	return &InMemorySequenceCounter{values: make(map[string]int64)}
}

// Next increments the named counter and returns the new value
func (c *InMemorySequenceCounter) Next(_ context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name]++
	return c.values[name], nil
}

var (
	_ billing.SequenceCounter = (*RedisSequenceCounter)(nil)
	_ billing.SequenceCounter = (*InMemorySequenceCounter)(nil)
)
