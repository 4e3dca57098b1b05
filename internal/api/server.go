// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/riyamaga/internal/platform/config"
	"github.com/taibuivan/riyamaga/internal/platform/constants"
	"github.com/taibuivan/riyamaga/internal/platform/middleware"
	"github.com/taibuivan/riyamaga/internal/platform/ratelimit"
	requestutil "github.com/taibuivan/riyamaga/internal/platform/request"
	"github.com/taibuivan/riyamaga/internal/users/account"
	"github.com/taibuivan/riyamaga/internal/users/auth"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
type Handlers struct {
	// Liveness is the /health handler. Always 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. 200 only when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth handles the OTP login and refresh routes.
	Auth *auth.Handler

	// Account handles /me and the /admin account controls.
	Account *account.Handler
}

// Guards carries the limiters and the authentication collaborators.
type Guards struct {
	// Global throttles every request per client IP.
	Global ratelimit.Limiter

	// OTP throttles the two OTP endpoints per client IP.
	OTP ratelimit.Limiter

	// Tokens verifies bearer access tokens.
	Tokens middleware.TokenVerifier

	// Status re-reads the account standing on every authenticated request.
	Status middleware.StatusResolver

	// Proxies may set the client address headers. Nil trusts nobody.
	Proxies middleware.TrustedProxies
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(cfg *config.Config, log *slog.Logger, guards Guards, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RealIP(guards.Proxies))
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(guards.Global))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg, cfg.CORSOrigins))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Application API
	r.Mount("/auth", h.Auth.Routes(middleware.LimitBy(guards.OTP, requestutil.ClientIP)))
	r.Mount("/", h.Account.Routes(middleware.RequireAuth(guards.Tokens, guards.Status)))

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the fully wrapped router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
