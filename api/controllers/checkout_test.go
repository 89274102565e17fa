package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/namthanhstores/storefront-backend/api/middleware"
	"github.com/namthanhstores/storefront-backend/internal/cart"
	"github.com/namthanhstores/storefront-backend/internal/checkout"
	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/internal/identity"
	"github.com/namthanhstores/storefront-backend/internal/orders"
	"github.com/namthanhstores/storefront-backend/internal/payment"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
)

type stubCarts struct {
	cart *cart.Cart
}

func (s stubCarts) Open(context.Context, string) (*cart.Cart, error) {
	return s.cart, nil
}

type stubInitiator struct {
	req payment.InitiateRequest
	err error
}

func (s *stubInitiator) Initiate(_ context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &payment.InitiateResult{TransactionID: "tx-1", RedirectURL: "https://pay.example.com/tx-1"}, nil
}

type checkoutFixture struct {
	router    http.Handler
	cart      *cart.Cart
	store     *docstore.MemoryStore
	initiator *stubInitiator
	watchers  *payment.Watchers
}

func withUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithIdentity(r.Context(), &identity.Identity{UserID: userID, Email: "lan@example.com", Role: enums.RoleCustomer})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	userCart := cart.New("u1", []cart.LineItem{
		{ID: "p1", Name: "Áo", Price: 100000, Quantity: 2},
		{ID: "p2", Name: "Quần", Price: 50000, Quantity: 1},
	}, nil, nil)
	carts := stubCarts{cart: userCart}
	store := docstore.NewMemoryStore()
	watchers, err := payment.NewWatchers(store, nil)
	require.NoError(t, err)
	t.Cleanup(watchers.StopAll)
	initiator := &stubInitiator{}
	coordinator, err := checkout.NewCoordinator(checkout.Params{
		Carts:           carts,
		Initiator:       initiator,
		Watchers:        watchers,
		CashShippingFee: checkout.DefaultCashShippingFee,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(withUser("u1"))
	r.Post("/checkout/quote", CheckoutQuote(carts, coordinator, nil))
	r.Post("/checkout", CheckoutSubmit(carts, coordinator, nil))
	r.Get("/checkout/payments/{transactionId}", PaymentStatus(watchers, nil))
	r.Delete("/checkout/payments/{transactionId}", PaymentStopWatching(watchers, nil))
	return &checkoutFixture{router: r, cart: userCart, store: store, initiator: initiator, watchers: watchers}
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(method, path, strings.NewReader(body)))
	return resp
}

func TestCheckoutQuote(t *testing.T) {
	f := newCheckoutFixture(t)

	resp := serve(f.router, http.MethodPost, "/checkout/quote", `{"productIds":["p1","p2"],"paymentMethod":"cash"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data checkout.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.EqualValues(t, 250000, envelope.Data.TotalPrice)
	require.Equal(t, 3, envelope.Data.TotalQuantity)
	require.EqualValues(t, 10000, envelope.Data.ShippingFee)
	require.EqualValues(t, 260000, envelope.Data.TotalAmount)

	resp = serve(f.router, http.MethodPost, "/checkout/quote", `{"productIds":["p1"]}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Equal(t, enums.PaymentMethodPrepaid, envelope.Data.Method)
	require.Zero(t, envelope.Data.ShippingFee)

	require.Equal(t, http.StatusBadRequest, serve(f.router, http.MethodPost, "/checkout/quote", `{"productIds":["p9"]}`).Code)
	require.Equal(t, http.StatusBadRequest, serve(f.router, http.MethodPost, "/checkout/quote", `{"productIds":[]}`).Code)
	require.Equal(t, http.StatusBadRequest, serve(f.router, http.MethodPost, "/checkout/quote", `{"productIds":["p1"],"paymentMethod":"card"}`).Code)
}

func TestCheckoutSubmitAndSettle(t *testing.T) {
	f := newCheckoutFixture(t)
	body := `{
		"productIds":["p1","p2"],
		"totalPrice":250000,
		"totalQuantity":3,
		"paymentMethod":"cash",
		"profile":{"name":"Lan","phone":"0912345678","addressParts":{"detail":"1 Lê Lợi","ward":"Bến Nghé","district":"Quận 1","province":"Hồ Chí Minh"}},
		"note":"Giao giờ hành chính"
	}`

	resp := serve(f.router, http.MethodPost, "/checkout", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var envelope struct {
		Data checkout.SubmitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Equal(t, "tx-1", envelope.Data.TransactionID)
	require.EqualValues(t, 260000, f.initiator.req.Amount)
	require.Equal(t, "1 Lê Lợi, Bến Nghé, Quận 1, Hồ Chí Minh", f.initiator.req.Address)
	require.Equal(t, "lan@example.com", f.initiator.req.Email)
	require.Zero(t, f.cart.Count())

	resp = serve(f.router, http.MethodGet, "/checkout/payments/tx-1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"completed":false`)

	order := &orders.Order{
		ID:        "tx-1",
		UserID:    "u1",
		Items:     []orders.Item{{ID: "p1", ItemCount: 2}, {ID: "p2", ItemCount: 1}},
		Amount:    260000,
		CreatedAt: time.Now().UTC(),
		Status:    enums.OrderStatusPending,
		Shipping:  orders.Shipping{Name: "Lan", Phone: "0912345678", Address: "1 Lê Lợi"},
	}
	require.NoError(t, f.store.BatchWrite(context.Background(), []docstore.WriteOp{{
		Collection: orders.Collection, ID: "tx-1", Kind: enums.WriteKindUpsert, Data: order.Encode(),
	}}))

	require.Eventually(t, func() bool {
		w, ok := f.watchers.Get("u1", "tx-1")
		return ok && w.Completed()
	}, 2*time.Second, 10*time.Millisecond)

	resp = serve(f.router, http.MethodGet, "/checkout/payments/tx-1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var status struct {
		Data paymentStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &status))
	require.True(t, status.Data.Completed)
	require.NotNil(t, status.Data.Order)
	require.Equal(t, enums.OrderStatusPending, status.Data.Order.Status)

	require.Equal(t, http.StatusNoContent, serve(f.router, http.MethodDelete, "/checkout/payments/tx-1", "").Code)
	require.Equal(t, http.StatusNotFound, serve(f.router, http.MethodGet, "/checkout/payments/tx-1", "").Code)
	require.Equal(t, http.StatusNotFound, serve(f.router, http.MethodDelete, "/checkout/payments/tx-1", "").Code)
}

func TestCheckoutSubmitRejections(t *testing.T) {
	f := newCheckoutFixture(t)

	stale := `{"productIds":["p1"],"totalPrice":100000,"totalQuantity":2,"profile":{"name":"Lan","phone":"0912345678","address":"1 Lê Lợi"}}`
	require.Equal(t, http.StatusBadRequest, serve(f.router, http.MethodPost, "/checkout", stale).Code)

	badPhone := `{"productIds":["p1"],"totalPrice":200000,"totalQuantity":2,"profile":{"name":"Lan","phone":"12345","address":"1 Lê Lợi"}}`
	require.Equal(t, http.StatusBadRequest, serve(f.router, http.MethodPost, "/checkout", badPhone).Code)

	f.initiator.err = errors.New("gateway down")
	ok := `{"productIds":["p1"],"totalPrice":200000,"totalQuantity":2,"profile":{"name":"Lan","phone":"0912345678","address":"1 Lê Lợi"}}`
	require.Equal(t, http.StatusPaymentRequired, serve(f.router, http.MethodPost, "/checkout", ok).Code)

	require.Equal(t, 3, f.cart.Count())
	require.Zero(t, f.watchers.Count())
}
