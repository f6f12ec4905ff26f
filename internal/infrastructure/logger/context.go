package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/autoshop/backend/internal/infrastructure/correlation"
)

type ctxKey struct{}

// WithContext stores l in ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithCorrelationID stores the correlation id in ctx and returns a logger
// that tags every entry with it. An empty id is replaced by a generated one.
func WithCorrelationID(ctx context.Context, l *zap.Logger, id string) (context.Context, *zap.Logger) {
	ctx = correlation.WithID(ctx, id)
	tagged := l.With(zap.String("correlation_id", correlation.FromContext(ctx)))
	return WithContext(ctx, tagged), tagged
}

// TraceFields returns trace_id and span_id for the span in ctx, or nothing
// when ctx carries no valid span.
func TraceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// ForContext tags base with the trace and correlation ids found in ctx.
// A nil base yields a no-op logger.
func ForContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	fields := TraceFields(ctx)
	if id := correlation.FromContext(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// L is ForContext applied to the logger stored in ctx.
// Usage: logger.L(ctx).Info("invoice issued", zap.String("number", n))
func L(ctx context.Context) *zap.Logger {
	return ForContext(ctx, FromContext(ctx))
}
