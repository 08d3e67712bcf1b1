package middleware

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ActorHeader carries the ID of the administrator on whose behalf a request
// is made. It is set by the authenticating proxy in front of the API.
const ActorHeader = "X-Actor-ID"

// RequireActor is middleware that requires a valid actor ID
func RequireActor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, err := strconv.ParseInt(r.Header.Get(ActorHeader), 10, 64)
			if err != nil || actorID <= 0 {
				http.Error(w, `{"error": "unauthorized", "code": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			// Add actor to context
			ctx := context.WithValue(r.Context(), actorContextKey, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActorFromContext retrieves the actor ID from the request context
func GetActorFromContext(ctx context.Context) (int64, bool) {
	actorID, ok := ctx.Value(actorContextKey).(int64)
	return actorID, ok
}

// SetActorInContext adds an actor ID to the context.
// This is primarily for testing - use RequireActor middleware in production.
func SetActorInContext(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey, actorID)
}
