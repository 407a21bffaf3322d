package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shindakun/loginportal/internal/web/handlers"
	webmiddleware "github.com/shindakun/loginportal/internal/web/middleware"
)

// RegisterRoutes builds the router with global middleware and every route
func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(webmiddleware.LoggingMiddleware(s.logger))
	r.Use(webmiddleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(webmiddleware.SecurityHeaders(s.cfg))
	r.Use(webmiddleware.MaxBytesMiddleware(s.cfg.Server.Security.MaxRequestBytes))

	h := s.handlers

	// Scraped without CSRF or session handling
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/static/*", h.ServeStatic)

	r.Group(func(r chi.Router) {
		if s.cfg.Server.Security.CSRFEnabled {
			r.Use(webmiddleware.CSRFProtection(
				[]byte(s.cfg.Session.Secret),
				s.cfg.CookieSecure(),
				s.cfg.Server.Security.CSRFFieldName,
			))
		}

		r.Get("/", h.Landing)
		if path := s.cfg.Pages.RegisterPath; strings.HasPrefix(path, "/") && path != handlers.LoginPath {
			r.Get(path, h.Register)
		}

		s.registerLoginRoutes(r)

		r.Get("/logout", h.Logout)
		r.Post("/logout", h.Logout)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(webmiddleware.RequireAuth(s.sessionManager, handlers.LoginPath))
			r.Use(webmiddleware.NoStore)
			r.Get(s.cfg.Pages.DashboardPath, h.Dashboard)
		})
	})

	// 404 handler (must be last)
	r.NotFound(h.NotFound)

	return r
}

func (s *Server) registerLoginRoutes(r chi.Router) {
	h := s.handlers

	r.Route(handlers.LoginPath, func(r chi.Router) {
		r.Use(webmiddleware.NoStore)

		r.Get("/", h.LoginPage)
		r.With(s.limiter.Middleware).Post("/", h.LoginSubmit)

		r.Get("/home", h.NavigateHome)
		r.Post("/home", h.NavigateHome)
		r.Get("/register", h.NavigateRegister)
		r.Post("/register", h.NavigateRegister)
	})
}
