package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shindakun/loginportal/internal/auth"
	"github.com/shindakun/loginportal/internal/config"
	"github.com/shindakun/loginportal/internal/login"
	"github.com/shindakun/loginportal/internal/web/handlers"
	webmiddleware "github.com/shindakun/loginportal/internal/web/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	limiterCleanupInterval = time.Minute
	limiterIdleTimeout     = 10 * time.Minute
)

// Server wires the portal's handlers, middleware and background jobs
type Server struct {
	cfg            *config.Config
	logger         zerolog.Logger
	sessionManager *auth.SessionManager
	handlers       *handlers.Handlers
	limiter        *webmiddleware.RateLimiter
	httpServer     *http.Server
}

// New builds a server for cfg. authenticator is the upstream login client.
func New(cfg *config.Config, logger zerolog.Logger, sessionManager *auth.SessionManager, authenticator login.Authenticator) (*Server, error) {
	h, err := handlers.New(sessionManager, authenticator, cfg.Pages)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		sessionManager: sessionManager,
		handlers:       h,
		limiter:        webmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      otelhttp.NewHandler(s.RegisterRoutes(), "loginportal"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	go s.limiter.Cleanup(bgCtx, limiterCleanupInterval, limiterIdleTimeout)
	s.sessionManager.StartCleanup(bgCtx, time.Hour)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.GetAddr()).Str("base_url", s.cfg.GetBaseURL()).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info().Msg("server exited")
	return nil
}
