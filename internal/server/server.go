package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/agentgate/internal/auth"
)

// Options configures the HTTP server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	ServiceName    string
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	http   *http.Server
}

// New builds the router with the shared middleware stack. When
// authenticator is nil no identity is attached to requests.
func New(opts Options, logger *slog.Logger, authenticator *auth.Authenticator) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "agentgate"
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, opts.ServiceName)
	})

	r.Use(TimeoutMiddleware(opts.RequestTimeout))

	if authenticator != nil {
		r.Use(AuthMiddleware(authenticator))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, errNotFound(r))
	})

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
		http:   srv,
	}
}

// Listen opens the configured port. Pass the listener to Serve.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", s.Port, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server", slog.String("addr", ln.Addr().String()))

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.http.Shutdown(ctx)
}
