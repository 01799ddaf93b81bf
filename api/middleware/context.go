package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/codebrew/pos-backend/pkg/enums"
)

type contextKey string

const ctxActor contextKey = "actor"

// Actor is the authenticated caller. BranchID is nil for actors without a
// branch assignment.
type Actor struct {
	UserID   uuid.UUID
	Role     enums.Role
	BranchID *uuid.UUID
}

// HasRole reports whether the actor holds one of roles.
func (a Actor) HasRole(roles ...enums.Role) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

// OwnsBranch reports whether the actor is assigned to branchID.
func (a Actor) OwnsBranch(branchID uuid.UUID) bool {
	return a.BranchID != nil && *a.BranchID == branchID
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(Actor)
	return actor, ok
}
