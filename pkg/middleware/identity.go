package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	ProviderIDHeader = "X-Provider-ID"
	CallerIDHeader   = "X-Caller-ID"

	ProviderIDKey contextKey = "provider_id"
	CallerIDKey   contextKey = "caller_id"
)

// Identity copies the identities asserted by the gateway into the request
// context. Tokens are verified upstream; this service trusts the headers.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := strings.TrimSpace(r.Header.Get(ProviderIDHeader)); id != "" {
				ctx = context.WithValue(ctx, ProviderIDKey, id)
			}
			if id := strings.TrimSpace(r.Header.Get(CallerIDHeader)); id != "" {
				ctx = context.WithValue(ctx, CallerIDKey, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ProviderIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ProviderIDKey).(string)
	return id
}

func CallerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CallerIDKey).(string)
	return id
}
