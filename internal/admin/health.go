// Package admin serves the gRPC health protocol for orchestration probes.
package admin

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/cory-johannsen/hyggen/internal/config"
)

// DefaultProbeInterval is how often checks run when no interval is configured.
const DefaultProbeInterval = 10 * time.Second

const probeTimeout = 2 * time.Second

// Check reports whether a dependency is healthy. A nil error means SERVING.
type Check func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithCheck registers a check reported under service name. The overall
// status ("") is SERVING only while every check passes.
func WithCheck(name string, c Check) Option {
	return func(s *Server) { s.checks[name] = c }
}

// WithProbeInterval sets how often checks run.
func WithProbeInterval(d time.Duration) Option {
	return func(s *Server) { s.interval = d }
}

// Server hosts the grpc.health.v1 service.
type Server struct {
	cfg      config.AdminConfig
	logger   *zap.Logger
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	probes   sync.WaitGroup
}

// NewServer creates an admin Server.
//
// Precondition: logger must be non-nil.
// Postcondition: Every registered service reports NOT_SERVING until Serve runs
// the first probe.
func NewServer(cfg config.AdminConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		grpc:     grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler())),
		health:   health.NewServer(),
		checks:   make(map[string]Check),
		interval: DefaultProbeInterval,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range s.checks {
		s.health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the probes and serves gRPC on ln until Stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("admin server listening", zap.String("addr", ln.Addr().String()))

	s.Probe(ctx)
	s.probes.Add(1)
	go s.probeLoop(ctx)

	if err := s.grpc.Serve(ln); err != nil {
		return fmt.Errorf("serving admin grpc: %w", err)
	}
	return nil
}

func (s *Server) probeLoop(ctx context.Context) {
	defer s.probes.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Probe(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Probe runs every check once and publishes the results.
func (s *Server) Probe(ctx context.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := s.checks[name](cctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
			s.logger.Warn("health check failed",
				zap.String("check", name),
				zap.Error(err),
			)
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}

// Stop marks every service NOT_SERVING and stops the gRPC server, forcing
// it closed if ctx ends first.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.health.Shutdown()
	s.probes.Wait()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return fmt.Errorf("stopping admin grpc: %w", ctx.Err())
	}
}
