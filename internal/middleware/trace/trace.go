// Package trace assigns every request an ID and logs its outcome.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"finanzas/internal/log"
)

// ContextKey type for context keys owned by this package.
type ContextKey string

// RequestIDKey carries the request ID through the handler chain.
const RequestIDKey ContextKey = "request_id"

// Middleware stamps requests with an ID, counts them and writes one
// completion line per request with method, path, status and duration.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger
	requests  atomic.Int64
}

// Metrics is a snapshot of the request counter.
type Metrics struct {
	TotalRequests int64
}

func NewMiddleware(extractIP func(*http.Request) string, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.NewComponent(log.ComponentHTTP)
	}
	return &Middleware{extractIP: extractIP, logger: logger}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		m.requests.Add(1)

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		fields := []any{
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.status,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP,
		}
		switch {
		case rw.status >= 500:
			m.logger.ErrorContext(ctx, "request failed", fields...)
		case rw.status >= 400:
			m.logger.WarnContext(ctx, "request rejected", fields...)
		default:
			m.logger.InfoContext(ctx, "request served", fields...)
		}
	})
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID returns the ID stamped on the request, or "" outside the chain.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns a snapshot of the request counter.
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{TotalRequests: m.requests.Load()}
}
