package rbac

import (
	"context"

	"github.com/stackit-qa/stackit/internal/view"
)

type actorContextKey struct{}

// ContextWithActor stores the request Actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the request Actor, or an anonymous guest over the
// default catalog when none was bound.
func ActorFromContext(ctx context.Context) *Actor {
	if actor, ok := ctx.Value(actorContextKey{}).(*Actor); ok && actor != nil {
		return actor
	}
	return GuestActor(DefaultCatalog())
}

// ViewerOf summarises actor for page chrome.
func ViewerOf(actor *Actor) view.Viewer {
	if actor.IsGuest() {
		return view.Viewer{Role: "Guest"}
	}
	return view.Viewer{
		ID:            actor.ID(),
		Role:          actor.RoleDisplayName(),
		Authenticated: actor.IsAuthenticated(),
		IsAdmin:       actor.IsAdmin(),
		CanModerate:   actor.CanModerate(),
	}
}
