package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/kaiwa-ai/gemrack/internal/auth"
	"github.com/kaiwa-ai/gemrack/internal/chat"
	"github.com/kaiwa-ai/gemrack/internal/metrics"
	"github.com/kaiwa-ai/gemrack/internal/service/gems"
	"github.com/kaiwa-ai/gemrack/internal/storage"
	"github.com/kaiwa-ai/gemrack/internal/worker"
)

// Server is the Gemrack HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config holds all dependencies and settings for creating a Server.
// Optional fields (nil-safe): Sessions, Chat, UIFS.
type Config struct {
	Engine   *gems.Engine
	Store    storage.GemStore
	Recorder metrics.Recorder
	Pool     *worker.Pool
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Sessions *auth.SessionManager
	Chat     chat.Client

	// Slack request verification; empty skips verification (dev only).
	SigningSecret string

	// Workspace used when a request does not carry one.
	DefaultWorkspaceID string

	// HTTP server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	// Embedded admin SPA (nil = no UI).
	UIFS fs.FS
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := NewHandlers(HandlersDeps{
		Engine:             cfg.Engine,
		Store:              cfg.Store,
		Recorder:           cfg.Recorder,
		Sessions:           cfg.Sessions,
		Chat:               cfg.Chat,
		Pool:               cfg.Pool,
		Logger:             cfg.Logger,
		SigningSecret:      cfg.SigningSecret,
		DefaultWorkspaceID: cfg.DefaultWorkspaceID,
		Version:            cfg.Version,
	})

	mux := http.NewServeMux()

	// Slack surface (verified by request signature, not sessions).
	mux.HandleFunc("POST /slack/commands", h.HandleSlashCommand)
	mux.HandleFunc("POST /slack/interactions", h.HandleInteraction)

	// Admin session endpoints.
	mux.HandleFunc("POST /api/admin/login", h.HandleAdminLogin)
	mux.HandleFunc("POST /api/admin/logout", h.HandleAdminLogout)

	// Read-only gem browsing: no session, list view redacted.
	mux.HandleFunc("GET /api/gems", h.HandleListGems)
	mux.HandleFunc("GET /api/gems/{name}", h.HandleGetGem)

	// Admin API (session cookie required).
	adminOnly := requireSession(cfg.Sessions)
	mux.Handle("GET /api/admin/me", adminOnly(http.HandlerFunc(h.HandleAdminMe)))
	mux.Handle("PATCH /api/gems/{name}", adminOnly(http.HandlerFunc(h.HandleAdminSetEnabled)))
	mux.Handle("GET /api/usage", adminOnly(http.HandlerFunc(h.HandleAdminUsage)))
	mux.Handle("GET /api/usage/daily", adminOnly(http.HandlerFunc(h.HandleAdminUsageDaily)))

	// Health (no auth).
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	// SPA: serve the embedded admin UI at the root path.
	// Registered last so all API routes take priority via the mux's
	// longest-match rule.
	if cfg.UIFS != nil {
		mux.Handle("/", newSPAHandler(cfg.UIFS))
		cfg.Logger.Info("ui enabled, serving SPA at /")
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
