package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/autoshop/backend/internal/infrastructure/telemetry"
)

type counterRow struct {
	Name  string `gorm:"primaryKey"`
	Value int64
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRegisterDBTracing_AnnotatesStatementSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	db := openSQLite(t)
	require.NoError(t, db.AutoMigrate(&counterRow{}))

	cfg := telemetry.DefaultDBTracingConfig()
	cfg.DBSystem = "sqlite"
	cfg.SlowQueryThreshold = time.Nanosecond
	require.NoError(t, telemetry.RegisterDBTracing(db, cfg, zap.NewNop()))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, db.WithContext(ctx).Create(&counterRow{Name: "invoice:2026", Value: 1}).Error)
	parent.End()

	var found bool
	for _, span := range recorder.Ended() {
		for _, attr := range span.Attributes() {
			if attr.Key == "db.slow_query" && attr.Value.AsBool() {
				found = true
			}
		}
	}
	assert.True(t, found, "statement span should be flagged as slow")
}

func TestRegisterPoolMetrics(t *testing.T) {
	db := openSQLite(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	reg, err := telemetry.RegisterPoolMetrics(mp.Meter("test"), sqlDB)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Unregister() })

	require.NoError(t, sqlDB.Ping())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["db.client.connections.open"])
	assert.True(t, names["db.client.connections.in_use"])
	assert.True(t, names["db.client.connections.idle"])
	assert.True(t, names["db.client.connections.wait_count"])
}
