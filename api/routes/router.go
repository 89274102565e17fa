package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/namthanhstores/storefront-backend/api/controllers"
	cartcontrollers "github.com/namthanhstores/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/namthanhstores/storefront-backend/api/controllers/orders"
	"github.com/namthanhstores/storefront-backend/api/middleware"
	"github.com/namthanhstores/storefront-backend/internal/identity"
	"github.com/namthanhstores/storefront-backend/internal/orders"
	"github.com/namthanhstores/storefront-backend/internal/products"
	"github.com/namthanhstores/storefront-backend/pkg/config"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/redis"
)

// Deps are the services the HTTP surface dispatches to. Idempotency,
// Revoker, Gatherer and ReadyChecks are optional.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Identity    identity.Provider
	Revoker     identity.Revoker
	Idempotency redis.IdempotencyStore
	Carts       cartcontrollers.Carts
	Sessions    controllers.SessionCloser
	Products    products.Service
	Checkout    controllers.CheckoutCoordinator
	Watchers    controllers.PaymentWatchers
	Orders      orders.Service
	Gatherer    prometheus.Gatherer
	ReadyChecks map[string]controllers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	idempotencyTTL := cfg.Redis.IdempotencyTTL
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.ReadyChecks))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/{productId}", controllers.ProductDetail(deps.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Identity, logg))
			r.Use(middleware.Idempotency(deps.Idempotency, idempotencyTTL, logg))

			r.Post("/products/{productId}/comments", controllers.ProductAddComment(deps.Products, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(deps.Carts, logg))
				r.Delete("/", cartcontrollers.CartClear(deps.Carts, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Carts, deps.Products, logg))
				r.Post("/items/{productId}/decrement", cartcontrollers.CartDecrementItem(deps.Carts, logg))
				r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(deps.Carts, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", controllers.CheckoutSubmit(deps.Carts, deps.Checkout, logg))
				r.Post("/quote", controllers.CheckoutQuote(deps.Carts, deps.Checkout, logg))
				r.Get("/payments/{transactionId}", controllers.PaymentStatus(deps.Watchers, logg))
				r.Delete("/payments/{transactionId}", controllers.PaymentStopWatching(deps.Watchers, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.CancelOrder(deps.Orders, logg))
				r.Post("/{orderId}/confirm-receipt", ordercontrollers.ConfirmReceipt(deps.Orders, logg))
				r.Post("/{orderId}/ratings", ordercontrollers.RateItem(deps.Orders, logg))
				r.Post("/{orderId}/feedback", ordercontrollers.LeaveFeedback(deps.Orders, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.RoleStaff, logg))
				r.Post("/orders/{orderId}/advance", controllers.AdminAdvanceOrder(deps.Orders, logg))
			})

			r.Post("/session/logout", controllers.SessionLogout(deps.Sessions, deps.Revoker, logg))
		})
	})

	return r
}
