// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package control serves the standard gRPC health protocol so orchestrators
// and the status command can probe a running process.
package control

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/taskhub/taskhub/pkg/errutil"
)

// DefaultProbeInterval is how often registered checks run.
const DefaultProbeInterval = 5 * time.Second

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// GRPCServer runs a gRPC health server. The overall service ("") is SERVING
// only while every registered check passes.
type GRPCServer struct {
	component string
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger

	health     *health.Server
	grpcServer *grpc.Server
	listener   net.Listener

	mu      sync.Mutex
	checks  map[string]Checker
	stop    chan struct{}
	probeWG sync.WaitGroup
}

// Option configures a GRPCServer.
type Option func(*GRPCServer)

// WithProbeInterval overrides DefaultProbeInterval.
func WithProbeInterval(d time.Duration) Option {
	return func(s *GRPCServer) { s.interval = d }
}

// WithLogger sets the logger used for check failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *GRPCServer) { s.logger = logger }
}

// NewGRPCServer creates a health server for the named component.
func NewGRPCServer(component string, opts ...Option) (*GRPCServer, error) {
	if component == "" {
		return nil, oops.Code("CONTROL_INVALID").Errorf("component name cannot be empty")
	}
	s := &GRPCServer{
		component: component,
		interval:  DefaultProbeInterval,
		logger:    slog.Default(),
		health:    health.NewServer(),
		checks:    make(map[string]Checker),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		s.interval = DefaultProbeInterval
	}
	s.timeout = s.interval
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s, nil
}

// AddCheck registers a named check, reported as its own health service.
func (s *GRPCServer) AddCheck(service string, check Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[service] = check
	s.health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Probe runs every check once and publishes the results.
func (s *GRPCServer) Probe(ctx context.Context) {
	s.mu.Lock()
	checks := make(map[string]Checker, len(s.checks))
	for name, c := range s.checks {
		checks[name] = c
	}
	s.mu.Unlock()

	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range checks {
		status := healthpb.HealthCheckResponse_SERVING
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
			errutil.LogErrorContext(ctx, s.logger, "health check failed", err,
				"component", s.component, "check", name)
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}

// Start listens on addr, serves the health protocol and probes checks
// periodically. The returned channel receives the serve error once.
func (s *GRPCServer) Start(addr string) (<-chan error, error) {
	if s.listener != nil {
		return nil, oops.Code("CONTROL_START_FAILED").Errorf("server is already running")
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Code("CONTROL_START_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	s.Probe(context.Background())
	s.stop = make(chan struct{})
	s.probeWG.Add(1)
	go s.probeLoop()

	errCh := make(chan error, 1)
	go func() {
		err := s.grpcServer.Serve(listener)
		if err != nil {
			s.logger.Error("control gRPC server error", "component", s.component, "error", err)
		}
		errCh <- err
	}()
	return errCh, nil
}

func (s *GRPCServer) probeLoop() {
	defer s.probeWG.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Probe(context.Background())
		}
	}
}

// Addr returns the bound address, or "" before Start.
func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop marks every service NOT_SERVING and gracefully stops the server.
// If ctx ends first, remaining connections are closed.
func (s *GRPCServer) Stop(ctx context.Context) error {
	s.health.Shutdown()
	if s.stop != nil {
		close(s.stop)
		s.probeWG.Wait()
		s.stop = nil
	}
	if s.grpcServer == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
		return oops.Code("CONTROL_STOP_FAILED").Wrap(ctx.Err())
	}
}

// Check asks the health server at addr for the status of service ("" for
// the process as a whole).
func Check(ctx context.Context, addr, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, oops.Code("CONTROL_DIAL_FAILED").With("addr", addr).Wrap(err)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, oops.Code("CONTROL_CHECK_FAILED").
			With("addr", addr).
			With("service", service).
			Wrap(err)
	}
	return resp.GetStatus(), nil
}
