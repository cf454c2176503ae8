package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	healthhttp "gestaoplus/ms_nfse_core/internal/adapters/http/health"
	nfsehttp "gestaoplus/ms_nfse_core/internal/adapters/http/nfse"
	"gestaoplus/ms_nfse_core/internal/infrastructure/config"
	"gestaoplus/ms_nfse_core/internal/infrastructure/http/middleware"
)

// Server hosts the HTTP surface: the invoice transmission API plus the
// health endpoint.
type Server struct {
	log        *slog.Logger
	httpServer *http.Server
	auth       *middleware.JWTAuthenticator
	shutdownTO time.Duration
}

// Options carries the handlers and configuration the server mounts.
type Options struct {
	HTTP   config.HTTPSettings
	Auth   config.AuthSettings
	Logger *slog.Logger
	Health *healthhttp.Handler
	NFSe   *nfsehttp.Handler
}

// New assembles the router and the underlying http.Server. Authority
// calls ride on the request context, so the invoice routes get the
// extended timeout rather than the default write timeout.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Health == nil {
		return nil, errors.New("health handler is required")
	}
	if opts.NFSe == nil {
		return nil, errors.New("invoice handler is required")
	}

	auth, err := middleware.NewJWTAuthenticator(opts.Auth, opts.Logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(auth.Middleware)

	r.Get("/health", opts.Health.Status)

	r.Route("/api/v1/nfse", func(r chi.Router) {
		r.Use(middleware.ExtendedTimeout(opts.HTTP))
		r.Mount("/", opts.NFSe.Routes())
	})

	srv := &http.Server{
		Addr:         opts.HTTP.Address(),
		Handler:      r,
		ReadTimeout:  opts.HTTP.ReadTimeout,
		WriteTimeout: opts.HTTP.WriteTimeoutMassive,
		IdleTimeout:  opts.HTTP.IdleTimeout,
	}

	shutdownTO := opts.HTTP.ShutdownTimeout
	if shutdownTO <= 0 {
		shutdownTO = 30 * time.Second
	}

	return &Server{
		log:        opts.Logger,
		httpServer: srv,
		auth:       auth,
		shutdownTO: shutdownTO,
	}, nil
}

// Run serves until the context is cancelled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTO)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("graceful shutdown failed", "error", err)
			return err
		}
		s.log.Info("HTTP server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases background resources held by middleware.
func (s *Server) Close() {
	if s.auth != nil {
		s.auth.Close()
	}
}
