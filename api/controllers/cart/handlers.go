package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/namthanhstores/storefront-backend/api/middleware"
	"github.com/namthanhstores/storefront-backend/api/responses"
	"github.com/namthanhstores/storefront-backend/api/validators"
	cartsvc "github.com/namthanhstores/storefront-backend/internal/cart"
	"github.com/namthanhstores/storefront-backend/internal/products"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

// Carts hands out the live cart of a user.
type Carts interface {
	Open(ctx context.Context, userID string) (*cartsvc.Cart, error)
}

// ProductReader loads catalog entries.
type ProductReader interface {
	Get(ctx context.Context, productID string) (*products.Product, error)
}

// CartFetch returns the caller's cart.
func CartFetch(carts Carts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userCart, ok := openCart(w, r, carts, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, newCartResponse(userCart))
	}
}

// CartAddItem adds one unit of a catalog product.
func CartAddItem(carts Carts, catalog ProductReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userCart, ok := openCart(w, r, carts, logg)
		if !ok {
			return
		}
		product, err := catalog.Get(r.Context(), strings.TrimSpace(payload.ProductID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := userCart.AddItem(r.Context(), product.LineItem()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(userCart))
	}
}

// CartDecrementItem takes one unit off a line, removing it at zero.
func CartDecrementItem(carts Carts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userCart, ok := openCart(w, r, carts, logg)
		if !ok {
			return
		}
		userCart.DecrementItem(r.Context(), chi.URLParam(r, "productId"))
		responses.WriteSuccess(w, newCartResponse(userCart))
	}
}

// CartRemoveItem drops a line whatever its quantity.
func CartRemoveItem(carts Carts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userCart, ok := openCart(w, r, carts, logg)
		if !ok {
			return
		}
		userCart.RemoveItem(r.Context(), chi.URLParam(r, "productId"))
		responses.WriteSuccess(w, newCartResponse(userCart))
	}
}

// CartClear empties the cart.
func CartClear(carts Carts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userCart, ok := openCart(w, r, carts, logg)
		if !ok {
			return
		}
		userCart.Clear(r.Context())
		responses.WriteSuccess(w, newCartResponse(userCart))
	}
}

func openCart(w http.ResponseWriter, r *http.Request, carts Carts, logg *logger.Logger) (*cartsvc.Cart, bool) {
	if carts == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return nil, false
	}
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return nil, false
	}
	userCart, err := carts.Open(r.Context(), userID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart"))
		return nil, false
	}
	return userCart, true
}
