package domain

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated caller. ClinicID is uuid.Nil for super
// admins.
type Principal struct {
	UserID   uuid.UUID
	ClinicID uuid.UUID
	Role     Role
}

func (p Principal) HasClinic() bool { return p.ClinicID != uuid.Nil }

// HasRole reports whether the principal holds one of roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
