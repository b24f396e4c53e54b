package auth

import (
	"context"

	"github.com/snowballr/snowballr-api/internal/user"
)

// Principal is the identity decoded from a session token. The zero value is
// the unauthenticated principal.
type Principal struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	IsAdmin   bool
	Status    string
}

// Authenticated reports whether the principal carries an identity.
func (p Principal) Authenticated() bool {
	return p.ID != 0
}

// PrincipalFromUser builds the principal embedded into a session token.
func PrincipalFromUser(u *user.User) Principal {
	return Principal{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsAdmin:   u.IsAdmin,
		Status:    u.Status,
	}
}

type principalKey struct{}

// ContextWithPrincipal attaches the principal to the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored in ctx, or the
// unauthenticated principal when none was attached.
func PrincipalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Principal{}
}
