package cache

import (
	"context"
	"fmt"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/autoshop/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Idempotency store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type storeOptions struct {
	log       *zap.Logger
	fallback  bool
	keyPrefix string
}

// StoreOption tunes OpenIdempotencyStore
type StoreOption func(*storeOptions)

func WithLogger(log *zap.Logger) StoreOption {
	return func(o *storeOptions) { o.log = log }
}

// WithInMemoryFallback lets an unreachable redis degrade to the in-memory
// store instead of failing. On by default.
func WithInMemoryFallback(allow bool) StoreOption {
	return func(o *storeOptions) { o.fallback = allow }
}

// WithKeyPrefix replaces DefaultIdempotencyKeyPrefix
func WithKeyPrefix(prefix string) StoreOption {
	return func(o *storeOptions) { o.keyPrefix = prefix }
}

// OpenIdempotencyStore returns the delivery dedupe store for backend. An
// empty backend means memory. The in-memory store only dedupes deliveries
// that reach the same replica, which is logged.
func OpenIdempotencyStore(ctx context.Context, backend string, redisCfg config.RedisConfig, opts ...StoreOption) (shared.IdempotencyStore, error) {
	o := storeOptions{log: zap.NewNop(), fallback: true}
	for _, opt := range opts {
		opt(&o)
	}

	switch backend {
	case "", BackendMemory:
		o.log.Warn("in-memory idempotency store: redeliveries to other replicas are not deduplicated")
		return NewInMemoryIdempotencyStore(), nil
	case BackendRedis:
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", backend)
	}

	client, err := NewRedisClient(ctx, redisCfg)
	switch {
	case err == nil:
		o.log.Info("redis idempotency store", zap.String("addr", redisCfg.Addr()))
		return NewRedisIdempotencyStore(client, o.keyPrefix), nil
	case !o.fallback:
		return nil, fmt.Errorf("delivery dedupe needs redis: %w", err)
	}
	o.log.Warn("redis unreachable, idempotency store falls back to memory", zap.Error(err))
	return NewInMemoryIdempotencyStore(), nil
}
