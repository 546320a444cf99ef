package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const actorContextKey contextKey = "atrium_actor"

// ActorHeader carries the caller's identity. Upstream auth terminates
// before this service and forwards the resolved user ID in this header.
const ActorHeader = "X-Atrium-Actor"

// ActorMiddleware copies the caller identity from the request header into
// the request context so handlers and logging can reach it uniformly.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
			r = r.WithContext(WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// WithActor returns a context carrying the given actor ID.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// GetActor returns the actor ID from the context, or "" when the request
// carried no identity.
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey).(string); ok {
		return actor
	}
	return ""
}
