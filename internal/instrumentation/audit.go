package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Action captures one mailbox or account operation for audit logging. Bulk
// cleanup operations are destructive, so every one of them leaves an audit
// trail of who did what and how many messages it touched.
//
// # Privacy Considerations
//
// The UserEmail field contains PII. When logging, consider:
//   - Using UserDomain() to get only the domain for metrics/general logs
//   - Only logging full email in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type Action struct {
	// Name identifies the action (scan, unsubscribe, delete_emails, sign_in, ...)
	Name string

	// UserEmail is the account the action ran against.
	UserEmail string

	// Operation details
	Operation string // operation type (scan, mark_read, delete, archive, ...)
	Query     string // Gmail query or sender filter, when applicable
	Affected  int    // messages touched

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// UserDomain returns the domain portion of the user's email for lower-cardinality logging.
func (a *Action) UserDomain() string {
	return ExtractUserDomain(a.UserEmail)
}

// Status returns "success" or "error" based on the Success field.
func (a *Action) Status() string {
	if a.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging with
// cardinality-controlled values (user_domain). For full audit logging, use
// LogAuditAttrs.
func (a *Action) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", a.Name),
		slog.String("user_domain", a.UserDomain()),
		slog.Duration("duration", a.Duration),
		slog.Bool("success", a.Success),
	}

	if a.Operation != "" {
		attrs = append(attrs, slog.String("operation", a.Operation))
	}
	if a.Affected > 0 {
		attrs = append(attrs, slog.Int("affected", a.Affected))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging, including
// the full user email for compliance purposes.
//
// # Security Warning
//
// This method includes PII (full email). Ensure audit logs are:
//   - Stored securely with appropriate access controls
//   - Not exposed to general monitoring dashboards
//   - Retained according to compliance requirements
func (a *Action) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", a.Name),
		slog.String("user", a.UserEmail),
		slog.Duration("duration", a.Duration),
		slog.Bool("success", a.Success),
	}

	if a.Operation != "" {
		attrs = append(attrs, slog.String("operation", a.Operation))
	}
	if a.Query != "" {
		attrs = append(attrs, slog.String("query", a.Query))
	}
	if a.Affected > 0 {
		attrs = append(attrs, slog.Int("affected", a.Affected))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", a.SpanID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}

	return attrs
}

// NewAction creates a new Action with timing started.
// Call Complete() when the operation finishes.
func NewAction(name string) *Action {
	return &Action{
		Name:      name,
		StartTime: time.Now(),
	}
}

// WithUser sets the account the action runs against.
func (a *Action) WithUser(email string) *Action {
	a.UserEmail = email
	return a
}

// WithOperation sets the operation type and the query it targets.
func (a *Action) WithOperation(operation, query string) *Action {
	a.Operation = operation
	a.Query = query
	return a
}

// WithAffected records how many messages the action touched.
func (a *Action) WithAffected(n int) *Action {
	a.Affected = n
	return a
}

// WithSpanContext extracts trace context from the current span.
func (a *Action) WithSpanContext(ctx context.Context) *Action {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		a.TraceID = span.SpanContext().TraceID().String()
		a.SpanID = span.SpanContext().SpanID().String()
	}
	return a
}

// Complete marks the action as completed and calculates duration.
// Returns the same Action for method chaining.
func (a *Action) Complete(success bool, err error) *Action {
	a.Duration = time.Since(a.StartTime)
	a.Success = success
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// CompleteWithError marks the action as failed with the given error.
func (a *Action) CompleteWithError(err error) *Action {
	return a.Complete(false, err)
}

// CompleteSuccess marks the action as successful.
func (a *Action) CompleteSuccess() *Action {
	return a.Complete(true, nil)
}

// AuditLogger provides structured audit logging for mailbox actions.
// It wraps slog.Logger with convenience methods for logging operations.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs (anonymized identifiers are used instead).
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include full email addresses in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogAction logs a completed action. If the logger is configured with
// IncludePII, full user emails are logged; otherwise only domain-based
// anonymized identifiers are used.
func (al *AuditLogger) LogAction(a *Action) {
	if !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = a.LogAuditAttrs()
	} else {
		attrs = a.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if a.Success {
		al.logger.Info("action_executed", args...)
	} else {
		al.logger.Warn("action_failed", args...)
	}
}

// LogAudit logs an action with full audit details, including PII,
// regardless of the IncludePII configuration. Use LogAction for
// configuration-aware logging.
func (al *AuditLogger) LogAudit(a *Action) {
	if !al.enabled {
		return
	}

	attrs := a.LogAuditAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	al.logger.Info("action_audit", args...)
}
