package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/teemow/mailsweep/internal/instrumentation"
)

// statusRecorder captures the response status code for middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMiddleware wraps the handler with tracing, request logging, and HTTP
// metrics. Each request runs inside its own span so handler-side spans and
// audit records attach to it.
func (s *APIServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := instrumentation.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		r = r.WithContext(ctx)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		if rec.status >= http.StatusInternalServerError {
			instrumentation.SetSpanError(span, fmt.Errorf("request failed with status %d", rec.status))
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		duration := time.Since(start)
		if m := s.sc.Metrics(); m != nil {
			m.RecordHTTPRequest(ctx, r.Method, r.URL.Path, rec.status, duration)
		}
		s.sc.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", duration.String(),
		)
	})
}
