package grpc

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server is a grpc.Server with the standard health service
type Server struct {
	*gogrpc.Server
	health *health.Server
}

// NewServer creates a traced server hosting services and reporting them
// as serving on the health endpoint.
func NewServer(services ...*gogrpc.ServiceDesc) *Server {
	srv := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	for _, sd := range services {
		srv.RegisterService(sd, nil)
		hs.SetServingStatus(sd.ServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	return &Server{Server: srv, health: hs}
}

// Drain marks every service not serving so the sidecar stops routing new
// calls, ahead of GracefulStop.
func (s *Server) Drain() {
	s.health.Shutdown()
}
