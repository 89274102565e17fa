package middleware

import (
	"context"

	"github.com/namthanhstores/storefront-backend/internal/identity"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the caller verified by Auth, or nil.
func IdentityFromContext(ctx context.Context) *identity.Identity {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxIdentity).(*identity.Identity); ok {
		return v
	}
	return nil
}

func UserIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.UserID
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.Role {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Role
	}
	return ""
}

// WithIdentity injects the verified caller into the context.
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, id)
}
