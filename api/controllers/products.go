package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/namthanhstores/storefront-backend/api/middleware"
	"github.com/namthanhstores/storefront-backend/api/responses"
	"github.com/namthanhstores/storefront-backend/api/validators"
	"github.com/namthanhstores/storefront-backend/internal/products"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

const maxProductCommentLength = 1000

type productCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

type productResponse struct {
	*products.Product
	DiscountedPrice int64 `json:"discountedPrice"`
}

// ProductDetail returns one catalog entry with its comments.
func ProductDetail(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.Get(r.Context(), chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, productResponse{Product: product, DiscountedPrice: int64(product.DiscountedPrice())})
	}
}

// ProductAddComment appends the caller's comment to a product.
func ProductAddComment(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload productCommentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		comment, err := svc.AddComment(r.Context(), products.AddCommentInput{
			ProductID: chi.URLParam(r, "productId"),
			UserID:    middleware.UserIDFromContext(r.Context()),
			Content:   validators.SanitizeString(payload.Content, maxProductCommentLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, comment)
	}
}
