// Package instrumentation provides OpenTelemetry instrumentation for the
// mailsweep server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, OAuth lifecycle events, and Gmail API calls
//   - Distributed tracing for request flows and API calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Gmail API Metrics:
//   - gmail_api_operations_total: Counter of Gmail operations by operation and status
//   - gmail_api_operation_duration_seconds: Histogram of Gmail operation durations
//
// OAuth Lifecycle Metrics:
//   - oauth_flow_total: Counter of completed authorization flows by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//   - registered_accounts: Gauge of accounts in the registry
//
// Cleanup Metrics:
//   - cleanup_messages_total: Counter of messages affected by cleanup operations
//   - mailbox_scan_duration_seconds: Histogram of mailbox scan durations
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling
//   - Mailbox actions (action.<name>)
//   - Gmail API calls (gmail.<operation>)
//   - OAuth token operations
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: mailsweep)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "mailsweep",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record an HTTP request
//	recorder.RecordHTTPRequest(ctx, "POST", "/api/scan", 200, time.Since(start))
//
//	// Record a Gmail API operation
//	recorder.RecordGmailOperation(ctx, instrumentation.OperationScan, "success", time.Since(start))
//
//	// Record a completed OAuth flow
//	recorder.RecordOAuthFlow(ctx, instrumentation.OAuthResultSuccess)
package instrumentation
