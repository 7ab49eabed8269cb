package utils

import "context"

// ctxKey is unexported to prevent collisions.
type ctxKey string

// CtxKeyActorID stores the id of the staff member performing the request.
const CtxKeyActorID ctxKey = "actorID"

// SystemActorID is recorded for changes made by background jobs.
const SystemActorID = "system"

func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, CtxKeyActorID, actorID)
}

// ActorIDFromContext returns the actor id, falling back to SystemActorID.
func ActorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyActorID).(string); ok && v != "" {
		return v
	}
	return SystemActorID
}
