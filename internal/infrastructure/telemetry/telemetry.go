// Package telemetry wires OpenTelemetry traces, metrics and logs plus
// Pyroscope profiling for the service binaries.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"

	"github.com/autoshop/backend/internal/infrastructure/config"
)

const (
	serviceVersion  = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

// Providers groups the telemetry pipelines of one process
type Providers struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
}

// Setup starts tracing, metrics, log export and profiling according to cfg.
// Span profiles are linked when both tracing and profiling are on. A
// pipeline that fails to start shuts down the ones started before it.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Providers, error) {
	p := &Providers{}
	var started []func(context.Context) error
	abort := func(err error) (*Providers, error) {
		for i := len(started) - 1; i >= 0; i-- {
			_ = started[i](ctx)
		}
		return nil, err
	}

	var err error
	if p.Tracer, err = NewTracerProvider(ctx, cfg, logger); err != nil {
		return abort(err)
	}
	started = append(started, p.Tracer.Shutdown)
	if p.Meter, err = NewMeterProvider(ctx, cfg, logger); err != nil {
		return abort(err)
	}
	started = append(started, p.Meter.Shutdown)
	if p.Logs, err = NewLoggerProvider(ctx, cfg, logger); err != nil {
		return abort(err)
	}
	started = append(started, p.Logs.Shutdown)
	if p.Profiler, err = NewProfiler(cfg, logger); err != nil {
		return abort(err)
	}

	if p.Profiler.Enabled() {
		p.Tracer.EnableSpanProfiles()
	}
	return p, nil
}

// Shutdown stops every pipeline and returns the joined errors
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Profiler.Stop(),
		p.Logs.Shutdown(ctx),
		p.Meter.Shutdown(ctx),
		p.Tracer.Shutdown(ctx),
	)
}

func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	return res, nil
}

// shutdownWithin runs stop with at most shutdownTimeout left on ctx
func shutdownWithin(ctx context.Context, what string, stop func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		return fmt.Errorf("shutdown %s: %w", what, err)
	}
	return nil
}
