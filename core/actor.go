package core

import (
	"context"
	"strings"
)

// Role prefixes; a concrete role may carry a qualifier, e.g. "admin:owner".
const (
	RoleAdmin   = "admin:"
	RoleBursar  = "bursar:"
	RoleTeacher = "teacher:"
	RoleStudent = "student:"
)

// Actor is the authenticated user a request is made on behalf of.
type Actor struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	SchoolID string `json:"school_id,omitempty"`
}

func (a Actor) IsZero() bool { return a.UserID == "" }

// HasRole reports whether the actor's role matches any of the given role prefixes.
func (a Actor) HasRole(prefixes ...string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(a.Role, prefix) {
			return true
		}
	}
	return false
}

type actorCtxKey struct{}

func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorCtxKey{}).(Actor)
	return actor, ok && !actor.IsZero()
}
