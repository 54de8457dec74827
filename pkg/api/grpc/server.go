package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aescanero/assetforge/pkg/domain"
)

// ServiceName is the health service name reported for the pipeline
const ServiceName = "assetforge.Pipeline"

// StatusSource reports the run status the health service follows
type StatusSource interface {
	Status() domain.RunStatus
}

// Server represents the gRPC API server
type Server struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	source   StatusSource
	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
}

// Config holds gRPC server configuration
type Config struct {
	Port     int
	Pipeline StatusSource
	// PollInterval controls how often the serving status is refreshed
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewServer creates a new gRPC server exposing the standard health service
func NewServer(cfg *Config) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	return newServer(listener, cfg), nil
}

func newServer(listener net.Listener, cfg *Config) *Server {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{
		server:   grpcServer,
		listener: listener,
		health:   healthServer,
		source:   cfg.Pipeline,
		interval: interval,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
	}
	s.refresh()

	return s
}

// Addr returns the listening address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start starts the gRPC server
func (s *Server) Start() error {
	s.logger.Info("starting gRPC server", zap.String("addr", s.listener.Addr().String()))

	go s.watch()

	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gRPC server")

	close(s.stopCh)
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.server.Stop()
	}

	s.logger.Info("gRPC server shut down complete")
	return nil
}

// watch keeps the health status in line with the run status
func (s *Server) watch() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *Server) refresh() {
	status := servingStatus(s.source.Status())
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// servingStatus maps a run status to a health status. An aborted run means
// the pipeline configuration is broken.
func servingStatus(status domain.RunStatus) healthpb.HealthCheckResponse_ServingStatus {
	if status == domain.RunStatusAborted {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
