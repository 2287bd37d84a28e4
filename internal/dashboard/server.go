// Package dashboard serves the GateKeeper governance dashboard over HTTP.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/narvanalabs/gatekeeper-dashboard/internal/api/errors"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/api/middleware"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/feed"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
	"github.com/narvanalabs/gatekeeper-dashboard/ui"
	"github.com/narvanalabs/gatekeeper-dashboard/web/health"
)

// Config holds the server settings.
type Config struct {
	Addr string
	// Upstream is the logs URL shown in the page footer.
	Upstream string
	// Interval is the polling period, used by the page's fallback refresh.
	Interval time.Duration
	Version  string
	// SecureCookies marks the viewer session cookie Secure.
	SecureCookies bool
}

// Server represents the dashboard HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	config     *Config
	store      *state.Store
	broker     *feed.Broker
	checker    *health.Checker
	validator  middleware.TokenValidator
	logger     *slog.Logger
}

// NewServer creates the server. A nil validator disables viewer auth.
func NewServer(cfg *Config, st *state.Store, broker *feed.Broker, checker *health.Checker, validator middleware.TokenValidator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    cfg,
		store:     st,
		broker:    broker,
		checker:   checker,
		validator: validator,
		logger:    logger.With("component", "dashboard"),
	}

	s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteErrorWithRequestID(w, apierrors.NewNotFoundError("Not found"), chimiddleware.GetReqID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteErrorWithRequestID(w, apierrors.NewMethodNotAllowedError("Method not allowed"), chimiddleware.GetReqID(r.Context()))
	})

	// Public
	r.Get("/health", s.checker.Handler())
	r.Handle("/assets/*", http.StripPrefix("/assets/", ui.Handler()))

	r.Group(func(r chi.Router) {
		if s.validator != nil {
			r.Use(middleware.NewViewerAuth(s.validator, s.config.SecureCookies, s.logger).Authenticate)
		}

		// The socket is long-lived and must not sit behind the request timeout.
		r.Get("/ws", s.handleWS)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(30 * time.Second))
			r.Get("/", s.handlePage)
			r.Get("/partials/dashboard", s.handlePartial)
			r.Get("/api/snapshot", s.handleSnapshot)
			r.Get("/api/summary", s.handleSummary)
		})
	})

	s.router = r
}

// Start serves until ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting dashboard server", "addr", s.httpServer.Addr, "auth", s.validator != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down dashboard server")
	return s.httpServer.Shutdown(ctx)
}

// HTTPServer returns the underlying server for shutdown coordination.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the router for testing purposes.
func (s *Server) Handler() http.Handler {
	return s.router
}
