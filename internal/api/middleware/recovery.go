package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	apierrors "github.com/narvanalabs/gatekeeper-dashboard/internal/api/errors"
	"github.com/narvanalabs/gatekeeper-dashboard/pkg/logger"
)

// Recovery returns a middleware that recovers from panics, logs them with the
// request and viewer found in the context, and answers with a 500 envelope.
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	base := &logger.Logger{Logger: log}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				requestID := logger.RequestIDFromContext(r.Context())
				if requestID == "" {
					requestID = middleware.GetReqID(r.Context())
				}

				entry := apierrors.NewErrorLogEntry(requestID, apierrors.CodeInternalError, "panic recovered")
				base.WithContext(r.Context()).Error("panic recovered",
					"error", rec,
					"correlation_id", entry.CorrelationID,
					"error_code", entry.ErrorCode,
					"stack_trace", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)

				apierrors.WriteError(w, apierrors.NewInternalError("An unexpected error occurred").WithRequestID(requestID))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
