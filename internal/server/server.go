// Package server exposes the record store over HTTP JSON.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"notilog/internal/logging"
	"notilog/internal/service"
)

// Config holds server configuration.
type Config struct {
	// Addr is the address to listen on (e.g., ":4570", "127.0.0.1:4570").
	Addr string

	// WriteRPS and WriteBurst bound per-IP writes. Zero RPS disables
	// rate limiting.
	WriteRPS   float64
	WriteBurst int

	// Logger for structured logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// Server is the HTTP JSON server over one Service.
type Server struct {
	svc     *service.Service
	cfg     Config
	logger  *slog.Logger
	limiter *rateLimiter

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New creates a new Server.
func New(svc *service.Service, cfg Config) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logging.Default(cfg.Logger).With("component", "server"),
	}
	if cfg.WriteRPS > 0 {
		s.limiter = newRateLimiter(cfg.WriteRPS, cfg.WriteBurst)
	}
	return s
}

// Handler builds the route table. Exposed for httptest-based tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/queue/record", s.limited(s.handleSubmit))
	mux.HandleFunc("POST /api/queue/write", s.limited(s.handleWrite))
	mux.HandleFunc("GET /api/queue/read", s.handleRead)
	mux.HandleFunc("POST /api/queue/filter", s.handleFilter)
	mux.HandleFunc("POST /api/queue/clear", s.limited(s.handleClear))
	mux.HandleFunc("GET /api/queue/info", s.handleInfo)
	mux.HandleFunc("GET /api/queue/health", s.handleHealth)
	mux.HandleFunc("GET /api/queue/statistics", s.handleStatistics)

	// Liveness probe for load balancers.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.mu.Unlock()

	if s.limiter != nil {
		var wg sync.WaitGroup
		s.limiter.startCleanup(ctx, &wg, time.Minute, 10*time.Minute)
		defer wg.Wait()
	}

	s.logger.Info("http server starting", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the listener address. Only valid after Run() has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
