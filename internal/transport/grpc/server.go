// Package grpcx serves the standard gRPC health protocol. Readiness follows
// periodic pings of the ledger and the mirror.
package grpcx

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

type Config struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	CallTimeout   time.Duration
	Reflection    bool
}

type Server struct {
	cfg    Config
	grpc   *grpc.Server
	health *health.Server
	checks map[string]Check

	mu   sync.Mutex
	last map[string]error
}

// NewServer registers one health service per check name plus the overall ""
// service, which is SERVING only while every check passes.
func NewServer(cfg Config, checks map[string]Check) *Server {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(cfg.CallTimeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	if cfg.Reflection {
		reflection.Register(gs)
	}

	s := &Server{cfg: cfg, grpc: gs, health: hs, checks: checks, last: make(map[string]error)}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range checks {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

func (s *Server) Serve(lis net.Listener) error { return s.grpc.Serve(lis) }

// RunProbes probes immediately and then every ProbeInterval until ctx ends.
func (s *Server) RunProbes(ctx context.Context) {
	s.Probe(ctx)
	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// Probe runs every check once and updates the health statuses.
func (s *Server) Probe(ctx context.Context) bool {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
		err := s.checks[name](pctx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			ready = false
		}
		s.health.SetServingStatus(name, st)
		s.record(name, err)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !ready {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	return ready
}

// record logs transitions only.
func (s *Server) record(name string, err error) {
	s.mu.Lock()
	prev, seen := s.last[name]
	s.last[name] = err
	s.mu.Unlock()

	switch {
	case err != nil && (!seen || prev == nil):
		slog.Warn("dependency unhealthy", "check", name, "err", err)
	case err == nil && seen && prev != nil:
		slog.Info("dependency recovered", "check", name)
	}
}

func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
