package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls the gorm tracing plugin
type DBTracingConfig struct {
	SlowQueryThreshold time.Duration
	DBSystem           string
	IncludeVariables   bool
}

// DefaultDBTracingConfig hides bind variables and flags queries slower than 200ms
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThreshold: 200 * time.Millisecond,
		DBSystem:           "postgresql",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db and annotates each statement
// span with the table, rows affected and a slow query marker.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = DefaultDBTracingConfig().SlowQueryThreshold
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.IncludeVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	start := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	finish := func(tx *gorm.DB) { annotateSpan(tx, cfg.SlowQueryThreshold) }

	cb := db.Callback()
	hooks := []struct {
		callback interface {
			Register(name string, fn func(*gorm.DB)) error
		}
		name string
		fn   func(*gorm.DB)
	}{
		{cb.Create().Before("gorm:create"), "start_create", start},
		{cb.Query().Before("gorm:query"), "start_query", start},
		{cb.Update().Before("gorm:update"), "start_update", start},
		{cb.Delete().Before("gorm:delete"), "start_delete", start},
		{cb.Row().Before("gorm:row"), "start_row", start},
		{cb.Raw().Before("gorm:raw"), "start_raw", start},
		// otelgorm ends its span in otel:after:*, so annotate first
		{cb.Create().After("gorm:create").Before("otel:after:create"), "end_create", finish},
		{cb.Query().After("gorm:query").Before("otel:after:query"), "end_query", finish},
		{cb.Update().After("gorm:update").Before("otel:after:update"), "end_update", finish},
		{cb.Delete().After("gorm:delete").Before("otel:after:delete"), "end_delete", finish},
		{cb.Row().After("gorm:row").Before("otel:after:row"), "end_row", finish},
		{cb.Raw().After("gorm:raw").Before("otel:after:raw"), "end_raw", finish},
	}
	for _, h := range hooks {
		if err := h.callback.Register("autoshop:trace_"+h.name, h.fn); err != nil {
			return err
		}
	}

	logger.Info("database tracing enabled",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.String("db_system", cfg.DBSystem),
	)
	return nil
}

func annotateSpan(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}
	if started, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(started); elapsed > threshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
