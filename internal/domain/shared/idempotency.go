package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed delivery ids
type IdempotencyStore interface {
	// MarkProcessed marks an id as processed with a TTL.
	// Returns true if the id was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an id has already been processed
	IsProcessed(ctx context.Context, id string) (bool, error)

	// Forget removes an id so the delivery can be processed again
	Forget(ctx context.Context, id string) error

	// Close closes the store and releases resources
	Close() error
}
