package server

import (
	"errors"
	"log/slog"
	"net"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health entry of the chat hub, next to the overall "" entry.
const ServiceName = "chathub.Hub"

// HealthServer serves the standard gRPC health protocol so that orchestrators
// can probe the hub without speaking websocket.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewHealthServer(log *slog.Logger) *HealthServer {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(log)))
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{server: s, health: h, log: log}
}

// Serve blocks until the server stops.
func (s *HealthServer) Serve(listener net.Listener) error {
	s.log.Info("Starting gRPC health server", "address", listener.Addr().String())
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown reports NOT_SERVING to pending watchers before stopping.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
