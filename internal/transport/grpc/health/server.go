// Package health serves the standard gRPC health protocol, with one service
// name per dependency (ledger, chain, backend) and "" for the whole process.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/worker"
)

// DefaultProbeInterval is how often checks run in the background.
const DefaultProbeInterval = 15 * time.Second

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Server owns the gRPC server and the probe loop.
type Server struct {
	grpc    *grpc.Server
	health  *grpchealth.Server
	checks  map[string]Check
	names   []string
	timeout time.Duration
	log     zerolog.Logger
	probe   *worker.Periodic

	mu     sync.Mutex
	probed bool
	last   error
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock
	log      zerolog.Logger
}

func WithInterval(d time.Duration) Option {
	return func(c *serverConfig) { c.interval = d }
}

// WithCheckTimeout bounds a single probe round.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *serverConfig) { c.timeout = d }
}

func WithClock(clk clock.Clock) Option {
	return func(c *serverConfig) { c.clock = clk }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *serverConfig) { c.log = l }
}

// New registers the health and reflection services. Every service starts
// NOT_SERVING until the first probe.
func New(checks map[string]Check, opts ...Option) *Server {
	cfg := serverConfig{
		interval: DefaultProbeInterval,
		timeout:  5 * time.Second,
		clock:    clock.NewRealClock(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		grpc:    grpc.NewServer(),
		health:  grpchealth.NewServer(),
		checks:  checks,
		timeout: cfg.timeout,
		log:     logging.Package(cfg.log, "health"),
	}
	for name := range checks {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)

	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, name := range s.names {
		s.health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	s.probe = worker.NewPeriodic("health-probe", cfg.interval, func(ctx context.Context) error {
		return s.Probe(ctx)
	}, worker.WithClock(cfg.clock), worker.WithLogger(s.log), worker.Immediately())
	return s
}

// Probe runs every check once and publishes the result. It returns the
// failures joined.
func (s *Server) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var failed []error
	for _, name := range s.names {
		status := healthpb.HealthCheckResponse_SERVING
		if err := s.checks[name](ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			failed = append(failed, fmt.Errorf("%s: %w", name, err))
		}
		s.health.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if len(failed) > 0 {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)

	err := errors.Join(failed...)
	s.mu.Lock()
	changed := !s.probed || (s.last == nil) != (err == nil)
	s.probed = true
	s.last = err
	s.mu.Unlock()
	if changed {
		if err != nil {
			s.log.Warn().Err(err).Msg("not serving")
		} else {
			s.log.Info().Msg("serving")
		}
	}
	return err
}

// Ready returns the result of the last probe. Before the first probe it
// runs one.
func (s *Server) Ready(ctx context.Context) error {
	s.mu.Lock()
	probed, last := s.probed, s.last
	s.mu.Unlock()
	if !probed {
		return s.Probe(ctx)
	}
	return last
}

// Start begins probing.
func (s *Server) Start(ctx context.Context) error {
	return s.probe.Start(ctx)
}

// Serve accepts gRPC connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop marks everything NOT_SERVING, stops probing and drains connections.
func (s *Server) Stop() {
	s.health.Shutdown()
	_ = s.probe.Stop()
	s.grpc.GracefulStop()
}
