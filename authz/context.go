package authz

import "context"

type actorContextKey struct{}

// Actor is the authenticated profile resolved by the auth middleware,
// threaded explicitly through the request context.
type Actor struct {
	ProfileID      string
	Email          string
	Role           string
	OrganizationID string
}

// ContextWithActor attaches the resolved actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, &actor)
}

// ActorFromContext extracts the resolved actor from the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*Actor)
	if !ok || v == nil {
		return Actor{}, false
	}
	return *v, true
}

// Require resolves the actor from the context and checks it against the
// minimum role. Gated handlers call this before performing any side
// effect; a non-nil error means nothing may be written.
func Require(ctx context.Context, minimum string) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, ErrNoActor
	}
	if !Allowed(actor.Role, minimum) {
		return Actor{}, ErrForbidden
	}
	return actor, nil
}
