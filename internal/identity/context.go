package identity

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// HasRole reports whether the principal holds one of roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// WithPrincipal stores the caller on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller if the gate admitted one.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
