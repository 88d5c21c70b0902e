package domain

import (
	"context"
	"time"
)

// AuditAction is the kind of mutation recorded in the audit trail.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// AuditEvent records one successful mutation of a document.
type AuditEvent struct {
	EventID    string
	Entity     string
	DocumentID string
	Action     AuditAction
	Fields     []string
	Actor      string // empty when authentication is disabled
	ActorRole  string
	Timestamp  time.Time
}

// Actor is the authenticated user behind a request.
type Actor struct {
	Username string
	Role     string
}

// Anonymous reports whether no user is attached, i.e. authentication is off.
func (a Actor) Anonymous() bool { return a.Username == "" }

// Can reports whether the actor may perform p. Anonymous actors are allowed
// everything since the API runs without authentication in that mode.
func (a Actor) Can(p Permission) bool {
	return a.Anonymous() || RoleAllows(a.Role, p)
}

type actorKey struct{}

// WithActor attaches the authenticated user to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	if a.Anonymous() {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor attached by WithActor, or the zero Actor.
func ActorFrom(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}
