// Package correlation carries the correlation id that threads one logical
// operation through HTTP requests, gRPC calls, published events and logs.
package correlation

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// HeaderName is the HTTP header read at the edge and forwarded to the sidecar.
	HeaderName = "X-Correlation-ID"
	// MetadataKey is the gRPC metadata key. gRPC metadata keys are lower case.
	MetadataKey = "x-correlation-id"
	// MaxLength bounds ids accepted from callers.
	MaxLength = 128
)

type contextKey struct{}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a time-sortable ULID string.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// WithID stores id in ctx. An empty id is replaced by a fresh one.
func WithID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewID()
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the correlation id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// Ensure returns ctx and its correlation id, generating one when absent.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return context.WithValue(ctx, contextKey{}, id), id
}

// Sanitize trims caller supplied ids and rejects oversized or control-character values.
func Sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxLength {
		return ""
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return ""
		}
	}
	return id
}
