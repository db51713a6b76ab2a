package middleware

import (
	"context"
	"net/http"
)

type contextKey string

// ActorKey holds the caller identity extracted from the X-Actor header.
const ActorKey contextKey = "actor"

// DefaultActor is recorded when a request carries no X-Actor header.
const DefaultActor = "anonymous"

// Actor extracts the caller identity from the X-Actor header and stores it
// in the request context. Authentication happens at the ingress in front of
// this service; the header only attributes operations and audit entries.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := r.Header.Get("X-Actor")
		if actor == "" {
			actor = DefaultActor
		}
		ctx := context.WithValue(r.Context(), ActorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor returns the caller identity stored by the Actor middleware.
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(ActorKey).(string); ok && actor != "" {
		return actor
	}
	return DefaultActor
}
