package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/autoshop/backend/internal/infrastructure/config"
	"github.com/autoshop/backend/internal/infrastructure/logger"
	"github.com/autoshop/backend/internal/infrastructure/rpc"
	"github.com/autoshop/backend/internal/infrastructure/telemetry"
	"github.com/autoshop/backend/internal/interfaces/http/handler"
	"github.com/autoshop/backend/internal/interfaces/http/middleware"
	"github.com/autoshop/backend/internal/interfaces/http/router"
)

//	@title			Auto Shop Gateway API
//	@version		1.0
//	@description	Public REST surface of the auto shop backend. Invoice routes are served by the billing service over gRPC; the other resources are forwarded to their owning services.
//	@contact.name	API Support
//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html
//	@host			localhost:8080
//	@BasePath		/api/v1

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
	meter := providers.Meter.Meter("github.com/autoshop/backend/gateway")

	log.Info("Starting API gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
		zap.String("sidecar", cfg.Sidecar.GRPCAddress()),
	)

	services := make(map[string]rpc.ServiceTarget, len(cfg.RPC.Services))
	ids := make([]string, 0, len(cfg.RPC.Services))
	for id, s := range cfg.RPC.Services {
		services[id] = rpc.ServiceTarget{Proto: s.Proto, Package: s.Package, Service: s.Service, AppID: s.AppID}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Parse every schema up front so a broken file fails the start, not the first request
	registry := rpc.NewRegistry(cfg.RPC.ProtoDir)
	for _, id := range ids {
		if _, err := registry.Resolve(ctx, services[id]); err != nil {
			log.Fatal("Failed to load service schema", zap.String("service", id), zap.Error(err))
		}
	}

	callMetrics, err := rpc.NewMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create RPC metrics", zap.Error(err))
	}
	client, err := rpc.NewClient(cfg.Sidecar.GRPCAddress(), registry, services,
		rpc.WithDefaultTimeout(cfg.RPC.DefaultTimeout),
		rpc.WithLogger(log),
		rpc.WithMetrics(callMetrics),
	)
	if err != nil {
		log.Fatal("Failed to create RPC client", zap.Error(err))
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("Error closing RPC client", zap.Error(err))
		}
	}()

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

	resources := make([]*handler.ResourceHandler, 0, len(ids))
	for _, id := range ids {
		if id == handler.BillingServiceID {
			continue
		}
		resources = append(resources, handler.NewResourceHandler(client, id))
	}
	routes := router.RegisterGateway(engine,
		handler.NewSystemHandler(cfg.App.Name, version),
		handler.NewInvoiceHandler(client),
		resources,
	)
	log.Debug("API routes mounted", zap.Strings("routes", routes))
	router.MountDocs(engine, router.GatewayDocs, middleware.SwaggerConfig{
		Enabled:    cfg.Swagger.Enabled,
		AllowedIPs: cfg.Swagger.AllowedIPs,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.Strings("services", ids))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gateway...")
	case err := <-serveErr:
		log.Error("Server stopped unexpectedly", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Gateway exited gracefully")
}
