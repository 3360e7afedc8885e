package types

import (
	"context"
)

// ActorRole identifies the kind of authenticated entity making a request.
// Identity itself is owned by an external collaborator; this engine only
// consumes the resolved actor.
type ActorRole string

const (
	RolePatient  ActorRole = "patient"
	RoleProvider ActorRole = "provider"
	RoleAdmin    ActorRole = "admin"
)

// Actor represents the authenticated entity performing an operation, as
// resolved by the upstream identity gateway.
type Actor struct {
	ID   string
	Role ActorRole
}

type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
