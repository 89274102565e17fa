package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/namthanhstores/storefront-backend/api/middleware"
	"github.com/namthanhstores/storefront-backend/api/responses"
	"github.com/namthanhstores/storefront-backend/api/validators"
	internalorders "github.com/namthanhstores/storefront-backend/internal/orders"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxCommentLength = 1000
)

// OrderResponse is an order plus its display label.
type OrderResponse struct {
	internalorders.Order
	StatusLabel string `json:"statusLabel"`
}

// NewOrderResponse wraps an order for the API.
func NewOrderResponse(order *internalorders.Order) OrderResponse {
	return OrderResponse{Order: *order, StatusLabel: order.Status.Label()}
}

type rateRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Star      int    `json:"star" validate:"gte=1,lte=5"`
}

type feedbackRequest struct {
	Rate    int    `json:"rate" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"required"`
}

type rateResponse struct {
	Order     OrderResponse `json:"order"`
	ProductID string        `json:"productId"`
	Rate      string        `json:"rate"`
	RateCount int64         `json:"rateCount"`
}

// List returns the caller's orders, newest first. ?status= filters by status;
// ?grouped=true buckets them by status instead.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status enums.OrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err = enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
		}

		list, err := svc.ListByUser(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if r.URL.Query().Get("grouped") == "true" {
			grouped := map[enums.OrderStatus][]OrderResponse{}
			for st, bucket := range internalorders.GroupByStatus(list) {
				grouped[st] = toResponses(bucket, limit)
			}
			responses.WriteSuccess(w, grouped)
			return
		}

		if status != "" {
			filtered := list[:0]
			for _, order := range list {
				if order.Status == status {
					filtered = append(filtered, order)
				}
			}
			list = filtered
		}
		responses.WriteSuccess(w, toResponses(list, limit))
	}
}

// Detail returns one order owned by the caller.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r, logg)
		if !ok {
			return
		}
		order, err := svc.Get(r.Context(), actor, chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderResponse(order))
	}
}

// CancelOrder cancels a Pending or Preparing order.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r, logg)
		if !ok {
			return
		}
		order, err := svc.Cancel(r.Context(), actor, chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderResponse(order))
	}
}

// ConfirmReceipt completes a Shipping order.
func ConfirmReceipt(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r, logg)
		if !ok {
			return
		}
		order, err := svc.ConfirmReceipt(r.Context(), actor, chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderResponse(order))
	}
}

// RateItem stars one line of a completed order.
func RateItem(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r, logg)
		if !ok {
			return
		}
		var payload rateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RateItem(r.Context(), internalorders.RateInput{
			OrderID:   chi.URLParam(r, "orderId"),
			ProductID: payload.ProductID,
			Star:      payload.Star,
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rateResponse{
			Order:     NewOrderResponse(result.Order),
			ProductID: result.ProductID,
			Rate:      result.Rating.RateString(),
			RateCount: result.Rating.Count,
		})
	}
}

// LeaveFeedback stores the review of a completed order.
func LeaveFeedback(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r, logg)
		if !ok {
			return
		}
		var payload feedbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.LeaveFeedback(r.Context(), internalorders.FeedbackInput{
			OrderID: chi.URLParam(r, "orderId"),
			Rate:    payload.Rate,
			Comment: validators.SanitizeString(payload.Comment, maxCommentLength),
			Actor:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderResponse(order))
	}
}

// ActorFromRequest builds the order actor from the verified identity.
func ActorFromRequest(r *http.Request) (internalorders.Actor, bool) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil || id.UserID == "" {
		return internalorders.Actor{}, false
	}
	return internalorders.Actor{UserID: id.UserID, Role: id.Role}, true
}

func actorFrom(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (internalorders.Actor, bool) {
	actor, ok := ActorFromRequest(r)
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
	}
	return actor, ok
}

func toResponses(list []internalorders.Order, limit int) []OrderResponse {
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]OrderResponse, 0, len(list))
	for i := range list {
		out = append(out, NewOrderResponse(&list[i]))
	}
	return out
}
