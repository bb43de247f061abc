package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	ctxClientID contextKey = "client_id"

	clientIDHeader = "X-Client-Id"
	maxClientIDLen = 64
)

// ClientIDFromContext returns the caller-supplied client identifier, if any.
func ClientIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxClientID).(string); ok {
		return v
	}
	return ""
}

// WithClientID stores the client identifier used to scope idempotency keys.
func WithClientID(ctx context.Context, clientID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClientID, clientID)
}

// ClientID copies the X-Client-Id header into the request context so two
// front desks reusing the same Idempotency-Key do not collide.
func ClientID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(clientIDHeader))
			if len(id) > maxClientIDLen {
				id = id[:maxClientIDLen]
			}
			if id != "" {
				r = r.WithContext(WithClientID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
