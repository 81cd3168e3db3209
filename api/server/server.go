package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/veridian-dash/veridian/api/common"
	"github.com/veridian-dash/veridian/api/tracing"
	"github.com/veridian-dash/veridian/lib/dash"
	"github.com/veridian-dash/veridian/lib/lockmgr"
	"github.com/veridian-dash/veridian/lib/store"
)

var Logger = logger.GetLogger("api")

const (
	defaultShutdownTimeout = 10 * time.Second
	maxBodyBytes           = 1 << 20
)

// Option customises a Server.
type Option func(*Server)

// WithTracing wraps every request in a span of the provider.
func WithTracing(p *tracing.Provider) Option {
	return func(s *Server) { s.tracer = p.Tracer("github.com/veridian-dash/veridian/api/server") }
}

// WithGenerator replaces the mock data generator (seeded from the config by default).
func WithGenerator(g *dash.Generator) Option {
	return func(s *Server) { s.gen = g }
}

// WithSeed replaces the seed records (loaded from the config's seed file by default).
func WithSeed(seed dash.Seed) Option {
	return func(s *Server) { s.seed = &seed }
}

// Server serves the dashboard API on top of one store. It keeps no entity state, every
// request builds its handles on the shared store.
type Server struct {
	config  common.ServerConfig
	store   store.IStore
	users   *dash.Users
	chats   *dash.Chats
	alerts  *dash.Alerts
	gen     *dash.Generator
	seed    *dash.Seed
	tracer  trace.Tracer
	metrics *metrics.Set
	handler http.Handler
}

// New creates the API server
//
// Usage:
//
//	s, err := server.New(config, st, server.WithTracing(provider))
//	if err != nil { ... }
//	err = s.Serve(ctx) // returns after ctx is cancelled and in-flight requests finished
func New(config common.ServerConfig, s store.IStore, opts ...Option) (*Server, error) {
	srv := &Server{
		config:  config,
		store:   s,
		metrics: metrics.NewSet(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	if srv.seed == nil {
		seed, err := dash.LoadSeed(config.SeedFile, time.Now())
		if err != nil {
			return nil, err
		}
		srv.seed = &seed
	}
	if srv.gen == nil {
		mockSeed := config.MockSeed
		if mockSeed == 0 {
			mockSeed = uint64(time.Now().UnixNano())
		}
		srv.gen = dash.NewGenerator(mockSeed, time.Now)
	}

	var locks lockmgr.ILockManager
	if config.ExclusiveWrites {
		locks = lockmgr.NewLockManager(s)
	}
	srv.users = dash.NewUsers(s, srv.seed.Users)
	srv.chats = dash.NewChats(s, srv.seed.Chats, locks)
	srv.alerts = dash.NewAlerts(s)

	srv.handler = srv.routes()
	return srv, nil
}

// Handler returns the root handler including all middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on the configured endpoint until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Endpoint)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Endpoint, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down gracefully within
// the configured shutdown timeout.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Infof("Starting HTTP server on %s", ln.Addr())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	Logger.Infof("shutting down HTTP server (timeout %s)", timeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
