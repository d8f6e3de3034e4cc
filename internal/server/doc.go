// Package server provides the HTTP API for mailsweep.
//
// # Key Components
//
// ServerContext holds the shared dependencies of the API: the credential
// resolver, the scan progress tracker, the logger, and optional
// instrumentation. Gmail clients are built per request from the resolver,
// so account switches take effect immediately.
//
// APIServer serves the account lifecycle endpoints (/api/accounts,
// /api/sign-in, /api/sign-out, /api/auth/status, /api/me) and the mailbox
// operations (/api/scan, /api/unsubscribe, /api/mark-read,
// /api/delete-emails, /api/archive, /api/export-threads,
// /api/search-threads). Requests without a usable credential receive an
// auth_required response carrying the pending authorization URL.
//
// MetricsServer serves Prometheus metrics on a dedicated port, isolating
// operational metrics from application traffic.
//
// HealthChecker provides /healthz and /readyz probes.
package server
