package rpc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc/codes"
)

const meterName = "github.com/autoshop/backend/internal/infrastructure/rpc"

// Metrics records one count and one latency sample per client call
type Metrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the client instruments on meter. A nil meter uses the
// global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	calls, err := meter.Int64Counter("rpc.client.calls",
		metric.WithDescription("Remote calls issued through the sidecar"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("rpc.client.duration",
		metric.WithDescription("Remote call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{calls: calls, duration: duration}, nil
}

func (m *Metrics) record(ctx context.Context, appID, method string, code codes.Code, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("rpc.app_id", appID),
		attribute.String("rpc.method", method),
		attribute.String("rpc.grpc.status_code", code.String()),
	)
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}
