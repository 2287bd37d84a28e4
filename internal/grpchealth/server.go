// Package grpchealth exposes the dashboard's upstream connection state over
// the standard gRPC health checking protocol.
package grpchealth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
)

// ServiceName is the health service name that mirrors the upstream status.
const ServiceName = "gatekeeper.dashboard"

// Config holds the gRPC server configuration.
type Config struct {
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		KeepaliveTime:    30 * time.Second,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// Server serves grpc.health.v1.Health. The empty service reports whether the
// process is up; ServiceName reports SERVING only while the last poll of the
// upstream succeeded.
type Server struct {
	health     *health.Server
	grpcServer *grpc.Server
	logger     *slog.Logger

	mu   sync.Mutex
	last healthpb.HealthCheckResponse_ServingStatus
}

// NewServer creates a health server. ServiceName starts as NOT_SERVING.
func NewServer(cfg *Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		health: health.NewServer(),
		logger: logger.With("component", "grpc-health"),
		last:   healthpb.HealthCheckResponse_NOT_SERVING,
	}

	s.grpcServer = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
		grpc.ChainUnaryInterceptor(s.loggingInterceptor()),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// OnSnapshot is a state.Listener that mirrors the upstream status.
func (s *Server) OnSnapshot(snap state.Snapshot) {
	next := healthpb.HealthCheckResponse_NOT_SERVING
	if snap.Healthy() {
		next = healthpb.HealthCheckResponse_SERVING
	}

	s.mu.Lock()
	changed := next != s.last
	s.last = next
	s.mu.Unlock()

	if changed {
		s.logger.Info("health status changed", "service", ServiceName, "status", next.String(), "upstream", snap.Status)
	}
	s.health.SetServingStatus(ServiceName, next)
}

// Serve accepts connections on lis until the server is stopped.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health server starting", "address", lis.Addr().String())
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving gRPC: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves until the server is stopped.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// GracefulStop marks every service NOT_SERVING and then stops the server
// once in-flight RPCs finish.
func (s *Server) GracefulStop() {
	s.logger.Info("gRPC health server stopping")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Stop closes all connections immediately, ending open Watch streams.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.Stop()
}

func (s *Server) loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		s.logger.Debug("gRPC request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start).String(),
		)
		return resp, err
	}
}
