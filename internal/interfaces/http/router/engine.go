package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/autoshop/backend/internal/infrastructure/logger"
	"github.com/autoshop/backend/internal/interfaces/http/middleware"
)

// EngineConfig configures the shared middleware chain
type EngineConfig struct {
	ServiceName      string
	Logger           *zap.Logger
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
	// Meter records HTTP metrics when set
	Meter     metric.Meter
	Tracing   bool
	Profiling bool
}

// NewEngine creates a gin engine with the middleware chain both services
// share: panic recovery, correlation ids, tracing, request logging,
// security headers, CORS, the body limit, metrics and profiling labels.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.Recovery(log),
		middleware.Correlation(),
	)
	if cfg.Tracing {
		engine.Use(
			middleware.Tracing(cfg.ServiceName, middleware.ProbePaths...),
			middleware.SpanAttributes(),
		)
	}

	engine.Use(
		logger.GinMiddleware(log),
		middleware.Secure(middleware.DefaultSecurityConfig()),
		middleware.CORS(cfg.CORSAllowOrigins...),
		middleware.BodyLimit(cfg.MaxBodySize),
	)

	if cfg.Meter != nil {
		metrics, err := middleware.HTTPMetrics(cfg.Meter)
		if err != nil {
			return nil, err
		}
		engine.Use(metrics)
	}
	if cfg.Profiling {
		engine.Use(middleware.Profiling(middleware.ProbePaths...))
	}
	return engine, nil
}
