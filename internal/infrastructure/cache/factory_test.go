package cache

import (
	"context"
	"testing"

	"github.com/autoshop/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// unreachableRedis points at a port nothing listens on
var unreachableRedis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

func TestOpenIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{"", BackendMemory} {
		t.Run("memory backend "+backend, func(t *testing.T) {
			store, err := OpenIdempotencyStore(ctx, backend, unreachableRedis)
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, &InMemoryIdempotencyStore{}, store)
		})
	}

	t.Run("redis unavailable falls back to memory", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		store, err := OpenIdempotencyStore(ctx, BackendRedis, unreachableRedis, WithLogger(zap.New(core)))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
		assert.Equal(t, 1, logs.FilterMessage("redis unreachable, idempotency store falls back to memory").Len())
	})

	t.Run("redis unavailable without fallback", func(t *testing.T) {
		_, err := OpenIdempotencyStore(ctx, BackendRedis, unreachableRedis, WithInMemoryFallback(false))
		assert.ErrorContains(t, err, "delivery dedupe needs redis")
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := OpenIdempotencyStore(ctx, "memcached", unreachableRedis)
		assert.Error(t, err)
	})
}
