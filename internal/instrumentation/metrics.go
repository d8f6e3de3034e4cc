package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency.
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrAccount   = "account"
	attrFailure   = "failure"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Gmail API metrics
	gmailOperationsTotal   metric.Int64Counter
	gmailOperationDuration metric.Float64Histogram

	// OAuth lifecycle metrics
	oauthFlowTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// Cleanup metrics
	cleanupMessagesTotal metric.Int64Counter
	scanDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	// Gmail API Metrics
	m.gmailOperationsTotal, err = meter.Int64Counter(
		"gmail_api_operations_total",
		metric.WithDescription("Total number of Gmail API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operations_total counter: %w", err)
	}

	m.gmailOperationDuration, err = meter.Float64Histogram(
		"gmail_api_operation_duration_seconds",
		metric.WithDescription("Gmail API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operation_duration_seconds histogram: %w", err)
	}

	// OAuth Metrics
	m.oauthFlowTotal, err = meter.Int64Counter(
		"oauth_flow_total",
		metric.WithDescription("Total number of completed OAuth authorization flows"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_flow_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	// Cleanup Metrics
	m.cleanupMessagesTotal, err = meter.Int64Counter(
		"cleanup_messages_total",
		metric.WithDescription("Total number of messages affected by cleanup operations"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cleanup_messages_total counter: %w", err)
	}

	m.scanDuration, err = meter.Float64Histogram(
		"mailbox_scan_duration_seconds",
		metric.WithDescription("Mailbox scan duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailbox_scan_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RegisterAccountsGauge registers an observable gauge reporting the number
// of registered accounts. The callback is invoked on every metrics
// collection, so it reads the registry fresh each time.
func RegisterAccountsGauge(meter metric.Meter, count func(context.Context) int64) error {
	gauge, err := meter.Int64ObservableGauge(
		"registered_accounts",
		metric.WithDescription("Number of accounts in the registry"),
		metric.WithUnit("{account}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create registered_accounts gauge: %w", err)
	}
	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, count(ctx))
		return nil
	}, gauge)
	if err != nil {
		return fmt.Errorf("failed to register accounts gauge callback: %w", err)
	}
	return nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGmailOperation records a Gmail API operation.
//
// Parameters:
//   - operation: Operation type (scan, unsubscribe, mark_read, delete, archive, export, search)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGmailOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.gmailOperationsTotal == nil || m.gmailOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.gmailOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.gmailOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthFlow records a completed authorization flow. Result is
// "success" or the failure classification (timeout, state_mismatch, denied,
// exchange, listener, register, canceled).
func (m *Metrics) RecordOAuthFlow(ctx context.Context, result string) {
	if m.oauthFlowTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthFlowTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "success", "failure", "expired"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordCleanup records how many messages a cleanup operation touched.
func (m *Metrics) RecordCleanup(ctx context.Context, operation string, affected int) {
	if m.cleanupMessagesTotal == nil {
		return // Instrumentation not initialized
	}

	m.cleanupMessagesTotal.Add(ctx, int64(affected), metric.WithAttributes(
		attribute.String(attrOperation, operation),
	))
}

// RecordScanDuration records how long a mailbox scan took.
func (m *Metrics) RecordScanDuration(ctx context.Context, duration time.Duration) {
	if m.scanDuration == nil {
		return // Instrumentation not initialized
	}

	m.scanDuration.Record(ctx, duration.Seconds())
}

// RecordCleanupWithAccount records a cleanup operation with account info.
// The account label is only included when detailed labels are enabled.
func (m *Metrics) RecordCleanupWithAccount(ctx context.Context, operation, account string, affected int) {
	if m.cleanupMessagesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.cleanupMessagesTotal.Add(ctx, int64(affected), metric.WithAttributes(attrs...))
}
