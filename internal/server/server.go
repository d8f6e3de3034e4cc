package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultAPIAddr is the default address for the API server.
	DefaultAPIAddr = ":8025"

	// DefaultReadHeaderTimeout bounds how long reading request headers may take.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout is the keep-alive idle timeout.
	DefaultIdleTimeout = 120 * time.Second
)

// APIServer serves the mailbox cleanup HTTP API.
type APIServer struct {
	sc         *ServerContext
	health     *HealthChecker
	httpServer *http.Server
	addr       string
}

// NewAPIServer creates the API server around a server context.
func NewAPIServer(sc *ServerContext, addr string) *APIServer {
	if addr == "" {
		addr = DefaultAPIAddr
	}
	return &APIServer{
		sc:     sc,
		health: NewHealthChecker(sc),
		addr:   addr,
	}
}

// Health returns the health checker so the lifecycle can flip readiness.
func (s *APIServer) Health() *HealthChecker {
	return s.health
}

// Handler builds the full route table wrapped in the middleware chain.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Account lifecycle
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts/switch", s.handleSwitchAccount)
	mux.HandleFunc("POST /api/accounts/remove", s.handleRemoveAccount)
	mux.HandleFunc("POST /api/sign-in", s.handleSignIn)
	mux.HandleFunc("POST /api/sign-out", s.handleSignOut)
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	mux.HandleFunc("GET /api/me", s.handleMe)

	// Mailbox operations
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/scan/status", s.handleScanStatus)
	mux.HandleFunc("POST /api/unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("POST /api/process-unsubscribe-label", s.handleProcessUnsubscribeLabel)
	mux.HandleFunc("POST /api/mark-read", s.handleMarkRead)
	mux.HandleFunc("POST /api/delete-emails", s.handleDeleteEmails)
	mux.HandleFunc("POST /api/archive", s.handleArchive)
	mux.HandleFunc("POST /api/export-threads", s.handleExportThreads)
	mux.HandleFunc("POST /api/search-threads", s.handleSearchThreads)

	s.health.RegisterHealthEndpoints(mux)

	return s.withMiddleware(mux)
}

// Start starts the API server in a blocking manner.
// Call this in a goroutine if you need non-blocking operation.
func (s *APIServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	slog.Info("starting API server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		slog.Info("shutting down API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *APIServer) Addr() string {
	return s.addr
}
