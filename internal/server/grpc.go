package server

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName is the gRPC health service name reported for analysis.
const HealthServiceName = "kubilitics.thermal.Analysis"

// GRPCServer exposes the standard gRPC health protocol so orchestrators can
// probe the service without HTTP.
type GRPCServer struct {
	server       *grpc.Server
	healthServer *health.Server
	port         int
	logger       *zap.Logger
}

// NewGRPCServer creates a gRPC server instance with health and reflection.
func NewGRPCServer(port int, logger *zap.Logger) *GRPCServer {
	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(1024 * 1024),
		grpc.ConnectionTimeout(30 * time.Second),
	}

	s := grpc.NewServer(opts...)
	healthServer := health.NewServer()

	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Enable reflection for grpcurl
	reflection.Register(s)

	return &GRPCServer{
		server:       s,
		healthServer: healthServer,
		port:         port,
		logger:       logger,
	}
}

// Start listens on the configured port and serves in the background.
func (s *GRPCServer) Start() error {
	addr := fmt.Sprintf("0.0.0.0:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener in the background.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.logger.Info("gRPC health server starting", zap.String("address", listener.Addr().String()))
	go func() {
		if err := s.server.Serve(listener); err != nil && err != grpc.ErrServerStopped {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()
	return nil
}

// SetServing flips the health status of the analysis service.
func (s *GRPCServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus(HealthServiceName, status)
}

// Stop gracefully stops the gRPC server
func (s *GRPCServer) Stop() {
	s.logger.Info("Stopping gRPC server")
	s.healthServer.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped gracefully")
	case <-time.After(5 * time.Second):
		s.logger.Warn("gRPC server forced to stop after timeout")
		s.server.Stop()
	}
}
