package middleware

import (
	"net/http"
	"runtime/debug"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/logger"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR reply. When the
// handler already started its response only the panic is logged, and
// http.ErrAbortHandler is re-raised so net/http drops the connection.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Error("Panic recovered",
					"request_id", RequestIDFromContext(r.Context()),
					"caller_id", CallerIDFromContext(r.Context()),
					"method", r.Method,
					"route", routeShape(r.URL.Path),
					"error", rec,
					"response_started", wrapped.written,
					"stack", string(debug.Stack()),
				)
				if !wrapped.written {
					apperrors.WriteError(wrapped, apperrors.Internal("Internal server error", nil))
				}
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
