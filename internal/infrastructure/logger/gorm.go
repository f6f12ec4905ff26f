package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig selects what the gorm logger writes
type GormLoggerConfig struct {
	Level gormlogger.LogLevel
	// SlowThreshold marks statements slower than it as slow sql. Zero
	// disables the check.
	SlowThreshold time.Duration
	// LogNotFound logs ErrRecordNotFound as an sql error. Lookups that miss
	// are routine, so it is off by default.
	LogNotFound bool
}

// GormLogger routes gorm's statement log through zap. Entries carry the
// trace and correlation ids of the context the statement ran in.
type GormLogger struct {
	base *zap.Logger
	cfg  GormLoggerConfig
}

// NewGormLogger creates a gorm logger writing to a "gorm" child of l
func NewGormLogger(l *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{base: l.Named("gorm"), cfg: cfg}
}

// LogMode implements gormlogger.Interface
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.cfg.Level = level
	return &clone
}

func (g *GormLogger) enabled(level gormlogger.LogLevel) bool {
	return g.cfg.Level >= level
}

// Info implements gormlogger.Interface
func (g *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if g.enabled(gormlogger.Info) {
		ForContext(ctx, g.base).Sugar().Infof(msg, data...)
	}
}

// Warn implements gormlogger.Interface
func (g *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if g.enabled(gormlogger.Warn) {
		ForContext(ctx, g.base).Sugar().Warnf(msg, data...)
	}
}

// Error implements gormlogger.Interface
func (g *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if g.enabled(gormlogger.Error) {
		ForContext(ctx, g.base).Sugar().Errorf(msg, data...)
	}
}

// Trace implements gormlogger.Interface. Failed statements log at error,
// slow ones at warn and the rest at debug when the level is Info.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && (g.cfg.LogNotFound || !errors.Is(err, gormlogger.ErrRecordNotFound))
	slow := g.cfg.SlowThreshold > 0 && elapsed > g.cfg.SlowThreshold

	var msg string
	switch {
	case failed && g.enabled(gormlogger.Error):
		msg = "sql error"
	case err == nil && slow && g.enabled(gormlogger.Warn):
		msg = "slow sql"
	case err == nil && g.enabled(gormlogger.Info):
		msg = "sql"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	log := ForContext(ctx, g.base)
	switch msg {
	case "sql error":
		log.Error(msg, append(fields, zap.Error(err))...)
	case "slow sql":
		log.Warn(msg, append(fields, zap.Duration("threshold", g.cfg.SlowThreshold))...)
	default:
		log.Debug(msg, fields...)
	}
}

// MapGormLogLevel maps the database.log_level setting to a gorm level.
// Unknown names mean warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
