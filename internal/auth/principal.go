package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Roles recognised by the API.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// Principal describes the authenticated actor of a request.
type Principal struct {
	UserID  uuid.UUID
	Role    string
	Company string
}

// IsElevated reports whether the actor may modify published records.
func (p Principal) IsElevated() bool {
	return strings.EqualFold(p.Role, RoleAdmin)
}

// HasRole reports whether the actor holds one of roles.
func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(p.Role, r) {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal stored by the middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || p.UserID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}
