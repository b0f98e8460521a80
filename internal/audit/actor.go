package audit

import "context"

// Source identifies the interface a change arrived through.
type Source string

// Known sources.
const (
	SourceAPI    Source = "api"
	SourceMQTT   Source = "mqtt"
	SourceSystem Source = "system"
)

// Actor is the caller responsible for a change.
type Actor struct {
	UserID string
	Source Source
}

type actorKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor. Without one the
// change is attributed to SourceSystem.
func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorKey{}).(Actor); ok {
		return actor
	}
	return Actor{Source: SourceSystem}
}
