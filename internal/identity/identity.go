// Package identity is the boundary to the auth system. The engine never
// authenticates anyone; it only scopes ApplyEffect to the entitlement
// owner reported by the collaborator.
package identity

import "context"

type Provider interface {
	CurrentUserID(ctx context.Context) (string, bool)
	CurrentUserRoles(ctx context.Context) []string
}

type ctxKey string

const (
	userIDKey ctxKey = "user_id"
	rolesKey  ctxKey = "user_roles"
)

// ContextProvider reads identity that an upstream gateway stamped onto the
// request context.
type ContextProvider struct{}

func (ContextProvider) CurrentUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok && v != ""
}

func (ContextProvider) CurrentUserRoles(ctx context.Context) []string {
	v, _ := ctx.Value(rolesKey).([]string)
	return v
}

// WithUser stamps identity onto a context. Used by the HTTP middleware and
// by tests.
func WithUser(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, rolesKey, roles)
}
