package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated actor id in the context.
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext returns the authenticated actor id, if present.
func ActorFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(actorContextKey{}).(int64)
	return userID, ok
}
