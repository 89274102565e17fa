package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	ordercontrollers "github.com/namthanhstores/storefront-backend/api/controllers/orders"
	"github.com/namthanhstores/storefront-backend/api/responses"
	"github.com/namthanhstores/storefront-backend/internal/orders"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

// AdminAdvanceOrder moves an order one step along Pending → Preparing → Shipping.
func AdminAdvanceOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ordercontrollers.ActorFromRequest(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		order, err := svc.Advance(r.Context(), actor, chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ordercontrollers.NewOrderResponse(order))
	}
}
