// Package identity turns bearer tokens into the signed-in user. Account
// management lives with the external provider; the storefront only needs a
// stable user id, an email and a role.
package identity

import (
	"context"
	"time"

	"github.com/namthanhstores/storefront-backend/pkg/enums"
)

// Identity is the verified caller.
type Identity struct {
	UserID      string     `json:"userId"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Role        enums.Role `json:"role"`
	// TokenID and ExpiresAt are set when the provider can revoke tokens.
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// IsStaff reports whether the identity may run back-office actions.
func (i Identity) IsStaff() bool {
	return i.Role == enums.RoleStaff
}

// Provider verifies a bearer token.
type Provider interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Revoker is implemented by providers that can invalidate a token on logout.
type Revoker interface {
	Revoke(ctx context.Context, id *Identity) error
}

func roleOrCustomer(raw string) enums.Role {
	role, err := enums.ParseRole(raw)
	if err != nil {
		return enums.RoleCustomer
	}
	return role
}
