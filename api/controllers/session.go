package controllers

import (
	"context"
	"net/http"

	"github.com/namthanhstores/storefront-backend/api/middleware"
	"github.com/namthanhstores/storefront-backend/api/responses"
	"github.com/namthanhstores/storefront-backend/internal/identity"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

// SessionCloser tears down the per-user cart session and its watchers.
type SessionCloser interface {
	Close(ctx context.Context, userID string) error
}

// SessionLogout flushes the caller's cart, stops their payment watchers and,
// when the provider supports it, revokes the bearer token.
func SessionLogout(sessions SessionCloser, revoker identity.Revoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := middleware.IdentityFromContext(r.Context())
		if id == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		if err := sessions.Close(r.Context(), id.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close session"))
			return
		}
		if revoker != nil {
			if err := revoker.Revoke(r.Context(), id); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		responses.WriteNoContent(w)
	}
}
