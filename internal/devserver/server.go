// Package devserver serves the build output directory during development.
package devserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/quantmind-br/assetforge/internal/domain"
	"github.com/quantmind-br/assetforge/internal/utils"
)

// Default values
const (
	DefaultAddr            = "localhost:3000"
	DefaultShutdownTimeout = 5 * time.Second
)

// Server is a static file server for the output directory
type Server struct {
	addr            string
	root            string
	shutdownTimeout time.Duration
	router          chi.Router
	logger          *utils.Logger
}

// Options contains options for the server
type Options struct {
	Addr            string
	Root            string
	ShutdownTimeout time.Duration
	Logger          *utils.Logger
}

// New creates a server for opts.Root
func New(opts Options) (*Server, error) {
	if opts.Root == "" {
		return nil, domain.NewValidationError("server.root", "root directory is required")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}

	s := &Server{
		addr:            opts.Addr,
		root:            opts.Root,
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          opts.Logger.WithComponent("devserver"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/*", http.FileServer(http.Dir(opts.Root)))

	s.router = r
	return s, nil
}

// ServeHTTP implements the http.Handler interface, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.addr
}

// Start listens on the configured address and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info().Str("url", "http://"+ln.Addr().String()).Str("root", s.root).Msg("Serving")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Msg("Request")
	})
}
