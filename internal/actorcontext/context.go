// Package actorcontext carries the resolved caller identity through a
// request. Authentication and role resolution happen upstream; services
// only read the outcome.
package actorcontext

import "context"

type ActorType string

const (
	ActorTypeContractor ActorType = "contractor"
	ActorTypeAdmin      ActorType = "admin"
	ActorTypeSystem     ActorType = "system"
)

type actorKey struct{}
type requestIDKey struct{}

type Actor struct {
	Type ActorType
	ID   string
}

// WithActor stores the caller identity in the context.
func WithActor(ctx context.Context, actorType ActorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, Actor{Type: actorType, ID: actorID})
}

// ActorFromContext returns the caller identity, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// AdminIDFromContext returns the admin user id when the caller is an admin.
func AdminIDFromContext(ctx context.Context) (string, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Type != ActorTypeAdmin || actor.ID == "" {
		return "", false
	}
	return actor.ID, true
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}
