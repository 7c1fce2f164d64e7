package middleware

import (
	"net/http"
	apperrors "slotkeeper/pkg/errors"
)

// MaxRequestSize caps request bodies at limit bytes. Declared oversize bodies
// are rejected up front; the rest fail on read.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				apperrors.WriteError(w, apperrors.New(apperrors.CodeBadRequest,
					"request body too large", http.StatusRequestEntityTooLarge))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
