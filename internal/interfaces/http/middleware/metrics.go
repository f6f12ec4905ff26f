package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// seconds, from health probes up to calls that wait out the RPC deadline
	durationBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	// bytes
	sizeBounds = []float64{100, 500, 1e3, 5e3, 1e4, 5e4, 1e5, 5e5, 1e6}
)

type httpInstruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	size     metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
}

func (in *httpInstruments) create(meter metric.Meter) error {
	var err error
	if in.requests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}")); err != nil {
		return err
	}
	if in.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Time to serve an HTTP request"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBounds...)); err != nil {
		return err
	}
	if in.size, err = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBounds...)); err != nil {
		return err
	}
	in.inFlight, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"))
	return err
}

// HTTPMetrics counts and times requests on meter, labelled by method and
// route pattern. Unmatched paths share the route "unknown" so raw paths
// never become label values.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	var in httpInstruments
	if err := in.create(meter); err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		in.inFlight.Add(ctx, 1)
		defer in.inFlight.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", c.Request.Method),
			attribute.String("http.route", route),
		}
		common := metric.WithAttributes(attrs...)
		in.requests.Add(ctx, 1, metric.WithAttributes(append(attrs,
			attribute.Int("http.response.status_code", status),
			attribute.String("http.status_class", statusClass(status)),
		)...))
		in.duration.Record(ctx, time.Since(start).Seconds(), common)
		if n := c.Writer.Size(); n > 0 {
			in.size.Record(ctx, int64(n), common)
		}
	}, nil
}

// statusClass buckets a status code as 2xx through 5xx, anything else as
// "other"
func statusClass(status int) string {
	switch status / 100 {
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	case 5:
		return "5xx"
	}
	return "other"
}
