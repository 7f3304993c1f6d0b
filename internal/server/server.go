// Package server is the headless HTTP + WebSocket API for the ShadowTrade
// client daemon.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shadowtrade/shadowbot/internal/domain"
	"github.com/shadowtrade/shadowbot/internal/server/handler"
	"github.com/shadowtrade/shadowbot/internal/server/middleware"
	"github.com/shadowtrade/shadowbot/internal/server/ws"
)

// writeRateLimit caps orchestrated actions per client IP. Reads are not
// limited; the snapshot cache absorbs them.
const (
	writeRateLimit  = 10
	writeRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers. Actions and
// Account may be nil in watch-only deployments; their routes are skipped.
type Handlers struct {
	Health     *handler.HealthHandler
	Catalogue  *handler.CatalogueHandler
	Actions    *handler.ActionHandler
	Account    *handler.AccountHandler
	Commentary *handler.CommentaryHandler
	Deploy     *handler.DeployHandler
}

// Server wraps the http.Server with route registration and graceful shutdown.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the middleware
// chain (rate limiting on writes, auth, logging, CORS) applied. limiter may
// be nil to disable write rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	limit := func(h http.HandlerFunc) http.Handler {
		if limiter == nil {
			return h
		}
		return middleware.RateLimit(limiter, writeRateLimit, writeRateWindow)(h)
	}

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Catalogue reads.
	mux.HandleFunc("GET /api/markets", handlers.Catalogue.ListMarkets)
	mux.HandleFunc("GET /api/markets/{address}", handlers.Catalogue.GetMarket)
	mux.HandleFunc("GET /api/categories", handlers.Catalogue.Categories)

	// Orchestrated actions (write surface).
	if handlers.Actions != nil {
		mux.Handle("POST /api/markets/{address}/commit", limit(handlers.Actions.Commit))
		mux.Handle("POST /api/markets/{address}/reveal", limit(handlers.Actions.Reveal))
		mux.Handle("POST /api/markets/{address}/claim", limit(handlers.Actions.Claim))
		mux.HandleFunc("GET /api/actions", handlers.Actions.History)
	}

	// Account reads.
	if handlers.Account != nil {
		mux.HandleFunc("GET /api/account", handlers.Account.Balance)
	}

	// Commentary.
	if handlers.Commentary != nil {
		mux.HandleFunc("GET /api/commentary", handlers.Commentary.Get)
	}

	// Deployment parameter preview.
	mux.HandleFunc("POST /api/deploy/preview", handlers.Deploy.Preview)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Middleware chain, outermost last.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
