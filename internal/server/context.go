package server

import (
	"context"
	"sync"

	"github.com/teemow/mailsweep/internal/auth"
	"github.com/teemow/mailsweep/internal/gmail"
	"github.com/teemow/mailsweep/internal/instrumentation"
	"github.com/teemow/mailsweep/internal/logging"
)

// ServerContext holds the shared dependencies of the HTTP API.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	resolver *auth.Resolver
	tracker  *gmail.Tracker
	logger   logging.Logger
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context around the credential
// resolver. The scan tracker is registered with the resolver so that its
// state is cleared when the last account signs out.
func NewServerContext(ctx context.Context, resolver *auth.Resolver, logger logging.Logger) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	tracker := gmail.NewTracker()
	resolver.RegisterResettable(tracker)

	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		resolver: resolver,
		tracker:  tracker,
		logger:   logger,
	}
}

// SetInstrumentation attaches the metrics recorder and audit logger. Both
// are optional; handlers tolerate their absence.
func (sc *ServerContext) SetInstrumentation(metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
	sc.audit = audit
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Resolver returns the credential resolver.
func (sc *ServerContext) Resolver() *auth.Resolver {
	return sc.resolver
}

// Tracker returns the shared scan progress tracker.
func (sc *ServerContext) Tracker() *gmail.Tracker {
	return sc.tracker
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// Audit returns the audit logger, which may be nil.
func (sc *ServerContext) Audit() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.audit
}

// GmailClient returns a Gmail client for the active account. The registry is
// consulted fresh on every call, so account switches take effect on the next
// request. When no authorized client is available, the returned message
// tells the user what to do next.
//
// The client is built on the server context, not the request context: a
// sign-in flow started here keeps running after the handler returns, and the
// client's token source must outlive the request for background work such as
// scans.
func (sc *ServerContext) GmailClient() (*gmail.Client, string) {
	httpClient, msg := sc.resolver.Resolve(sc.ctx)
	if httpClient == nil {
		return nil, msg
	}

	client, err := gmail.NewClient(sc.ctx, httpClient, sc.logger)
	if err != nil {
		sc.logger.Error("failed to build Gmail client", "error", err)
		return nil, "Failed to connect to Gmail. Please try again."
	}
	return client, ""
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
