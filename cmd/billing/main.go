package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	billingapp "github.com/autoshop/backend/internal/application/billing"
	eventapp "github.com/autoshop/backend/internal/application/event"
	"github.com/autoshop/backend/internal/infrastructure/config"
	"github.com/autoshop/backend/internal/infrastructure/logger"
	"github.com/autoshop/backend/internal/infrastructure/persistence"
	"github.com/autoshop/backend/internal/infrastructure/rpc"
	"github.com/autoshop/backend/internal/infrastructure/telemetry"
	grpcserver "github.com/autoshop/backend/internal/interfaces/grpc"
	"github.com/autoshop/backend/internal/interfaces/http/handler"
	"github.com/autoshop/backend/internal/interfaces/http/middleware"
	"github.com/autoshop/backend/internal/interfaces/http/router"
)

//	@title			Auto Shop Billing API
//	@version		1.0
//	@description	Billing service routes called by the pub/sub sidecar and by operators.
//	@contact.name	API Support
//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html
//	@host			localhost:8080
//	@BasePath		/

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = providers.Logs.Bridge(log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Error("Telemetry shutdown failed", zap.Error(err))
		}
	}()
	meter := providers.Meter.Meter("github.com/autoshop/backend/billing")

	log.Info("Starting billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("http_port", cfg.App.Port),
		zap.String("grpc_port", cfg.GRPC.Port),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DefaultDBTracingConfig(), log); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	if _, err := telemetry.RegisterPoolMetrics(meter, db.SQL()); err != nil {
		log.Warn("Failed to register connection pool metrics", zap.Error(err))
	}
	log.Info("Database connected successfully")

	counter, closeCounter, err := newSequenceCounter(ctx, cfg, db)
	if err != nil {
		log.Fatal("Failed to initialize invoice counter", zap.Error(err))
	}
	defer closeCounter()

	publishing, err := newPublishing(cfg, db, meter, log)
	if err != nil {
		log.Fatal("Failed to initialize event publisher", zap.Error(err))
	}
	defer publishing.Close()

	repo := persistence.NewGormInvoiceRepository(db.DB)
	settings := billingapp.Settings{
		TaxRate:  cfg.Billing.TaxRate,
		Currency: cfg.Billing.Currency,
		DueDays:  cfg.Billing.DueDays,
	}
	opts := publishing.ServiceOptions()
	invoiceService := billingapp.NewInvoiceService(repo, counter, publishing.Publisher, settings, log, opts...)
	workOrderCompleted := billingapp.NewWorkOrderCompletedHandler(repo, counter, publishing.Publisher, settings, log, opts...)
	if cfg.Event.DedupeDeliveries {
		store, err := newDedupeStore(ctx, cfg, log)
		if err != nil {
			log.Fatal("Failed to initialize delivery dedupe store", zap.Error(err))
		}
		defer func() { _ = store.Close() }()
		workOrderCompleted.WithDeliveryDedupe(store, cfg.Event.DedupeTTL)
	}

	// gRPC surface, described by the billing schema file
	registry := rpc.NewRegistry(cfg.RPC.ProtoDir)
	desc, err := registry.Resolve(ctx, grpcserver.BillingTarget)
	if err != nil {
		log.Fatal("Failed to load billing service schema", zap.Error(err))
	}
	serviceDesc, err := grpcserver.NewBillingServer(invoiceService).ServiceDesc(desc, rpc.CallLogging(log))
	if err != nil {
		log.Fatal("Failed to build billing service", zap.Error(err))
	}
	grpcSrv := grpcserver.NewServer(serviceDesc)

	// HTTP surface for the sidecar and operators
	deliveryMetrics, err := telemetry.NewBillingMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:      cfg.Telemetry.ServiceName,
		Logger:           log,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		Meter:            meter,
		Tracing:          cfg.Telemetry.Enabled,
		Profiling:        cfg.Telemetry.ProfilingEnabled,
	})
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}
	handlers := router.BillingHandlers{
		System:        handler.NewSystemHandler(cfg.App.Name, version),
		Subscriptions: handler.NewSubscriptionHandler(cfg.Event.PubSubName),
		Events:        handler.NewEventHandler(workOrderCompleted, deliveryMetrics),
	}
	if publishing.Outbox != nil {
		handlers.Outbox = handler.NewOutboxHandler(eventapp.NewOutboxService(publishing.Outbox, log))
	}
	router.RegisterBilling(engine, handlers)
	router.MountDocs(engine, router.BillingDocs, middleware.SwaggerConfig{
		Enabled:    cfg.Swagger.Enabled,
		AllowedIPs: cfg.Swagger.AllowedIPs,
	})

	if publishing.Processor != nil {
		if err := publishing.Processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		log.Fatal("Failed to listen for gRPC", zap.Error(err))
	}

	serveErr := make(chan error, 2)
	go func() {
		log.Info("gRPC server starting", zap.String("addr", lis.Addr().String()))
		serveErr <- grpcSrv.Serve(lis)
	}()
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down billing service...")
	case err := <-serveErr:
		log.Error("Server stopped unexpectedly", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	grpcSrv.Drain()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	stopGRPC(shutdownCtx, grpcSrv)

	if publishing.Processor != nil {
		if err := publishing.Processor.Stop(shutdownCtx); err != nil {
			log.Warn("Outbox processor did not stop cleanly", zap.Error(err))
		}
	}

	log.Info("Billing service exited gracefully")
}

// stopGRPC waits for in-flight calls until ctx expires, then cuts them off
func stopGRPC(ctx context.Context, srv *grpcserver.Server) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
	}
}
