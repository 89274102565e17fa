package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/namthanhstores/storefront-backend/api/middleware"
	"github.com/namthanhstores/storefront-backend/api/responses"
	"github.com/namthanhstores/storefront-backend/api/validators"
	"github.com/namthanhstores/storefront-backend/internal/cart"
	"github.com/namthanhstores/storefront-backend/internal/checkout"
	"github.com/namthanhstores/storefront-backend/internal/orders"
	"github.com/namthanhstores/storefront-backend/internal/payment"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

const maxNoteLength = 500

// CartOpener hands out the live cart of a user.
type CartOpener interface {
	Open(ctx context.Context, userID string) (*cart.Cart, error)
}

// CheckoutCoordinator prices selections and submits them for payment.
type CheckoutCoordinator interface {
	BeginCheckout(selected []cart.SelectedItem, totalPrice types.Money, totalQuantity int, method enums.PaymentMethod) (*checkout.Quote, error)
	Submit(ctx context.Context, input checkout.SubmitInput) (*checkout.SubmitResult, error)
}

// PaymentWatchers exposes the watchers of pending transactions.
type PaymentWatchers interface {
	Get(userID, transactionID string) (*payment.Watcher, bool)
	Stop(userID, transactionID string) bool
}

type checkoutQuoteRequest struct {
	ProductIDs    []string `json:"productIds" validate:"required,min=1,dive,required"`
	PaymentMethod string   `json:"paymentMethod"`
}

type checkoutSubmitRequest struct {
	ProductIDs    []string               `json:"productIds" validate:"required,min=1,dive,required"`
	TotalPrice    int64                  `json:"totalPrice" validate:"gte=0"`
	TotalQuantity int                    `json:"totalQuantity" validate:"gte=1"`
	PaymentMethod string                 `json:"paymentMethod"`
	Profile       shippingProfileRequest `json:"profile"`
	Note          string                 `json:"note"`
}

type shippingProfileRequest struct {
	Name         string                 `json:"name"`
	Phone        string                 `json:"phone"`
	Address      string                 `json:"address"`
	AddressParts *checkout.AddressParts `json:"addressParts,omitempty"`
	Email        string                 `json:"email"`
}

func (p shippingProfileRequest) toProfile() checkout.ShippingProfile {
	address := p.Address
	if strings.TrimSpace(address) == "" && p.AddressParts != nil {
		address = p.AddressParts.String()
	}
	return checkout.ShippingProfile{Name: p.Name, Phone: p.Phone, Address: address, Email: p.Email}
}

type paymentStatusResponse struct {
	TransactionID string        `json:"transactionId"`
	Completed     bool          `json:"completed"`
	Order         *orders.Order `json:"order,omitempty"`
}

// CheckoutQuote prices the selected cart lines for a payment method.
func CheckoutQuote(carts CartOpener, coordinator CheckoutCoordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutQuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := parseMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		selected, ok := selectLines(w, r, carts, payload.ProductIDs, logg)
		if !ok {
			return
		}
		price, qty := cart.SelectionTotals(selected)
		quote, err := coordinator.BeginCheckout(selected, price, qty, method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CheckoutSubmit opens a payment for the selected lines. The totals the
// client saw must still match the cart.
func CheckoutSubmit(carts CartOpener, coordinator CheckoutCoordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := parseMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		selected, ok := selectLines(w, r, carts, payload.ProductIDs, logg)
		if !ok {
			return
		}
		id := middleware.IdentityFromContext(r.Context())

		result, err := coordinator.Submit(r.Context(), checkout.SubmitInput{
			UserID:        id.UserID,
			Email:         id.Email,
			Items:         selected,
			TotalPrice:    types.Money(payload.TotalPrice),
			TotalQuantity: payload.TotalQuantity,
			Method:        method,
			Profile:       payload.Profile.toProfile(),
			Note:          validators.SanitizeString(payload.Note, maxNoteLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PaymentStatus reports whether a pending transaction has settled.
func PaymentStatus(watchers PaymentWatchers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		txID := chi.URLParam(r, "transactionId")
		watcher, ok := watchers.Get(userID, txID)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no pending payment with this transaction id"))
			return
		}
		responses.WriteSuccess(w, paymentStatusResponse{
			TransactionID: watcher.TransactionID(),
			Completed:     watcher.Completed(),
			Order:         watcher.Order(),
		})
	}
}

// PaymentStopWatching releases the watcher of a transaction, e.g. when the
// buyer leaves the payment result page.
func PaymentStopWatching(watchers PaymentWatchers, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if !watchers.Stop(userID, chi.URLParam(r, "transactionId")) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no pending payment with this transaction id"))
			return
		}
		responses.WriteNoContent(w)
	}
}

func parseMethod(raw string) (enums.PaymentMethod, error) {
	method, err := enums.ParsePaymentMethod(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").
			WithDetails(map[string]any{"field": "paymentMethod"})
	}
	return method, nil
}

func selectLines(w http.ResponseWriter, r *http.Request, carts CartOpener, ids []string, logg *logger.Logger) ([]cart.SelectedItem, bool) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil || id.UserID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return nil, false
	}
	userCart, err := carts.Open(r.Context(), id.UserID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart"))
		return nil, false
	}
	selected, err := userCart.Select(ids)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return selected, true
}
