// Package auth provides bearer-token actor extraction and role-based route
// guards. Session management and account provisioning live outside this
// service; the scheduler only needs to know who is calling and in what role.
package auth

import "context"

// Role identifies the capacity an actor operates in.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether the role is one the platform knows.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// IsAdmin reports whether the role carries administrative privileges.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext retrieves the actor set by the JWT middleware. The second
// return value is false when the context carries no actor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
