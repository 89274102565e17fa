package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/namthanhstores/storefront-backend/api/middleware"
	cartsvc "github.com/namthanhstores/storefront-backend/internal/cart"
	"github.com/namthanhstores/storefront-backend/internal/identity"
	"github.com/namthanhstores/storefront-backend/internal/products"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
)

type stubCarts struct {
	cart *cartsvc.Cart
}

func (s stubCarts) Open(context.Context, string) (*cartsvc.Cart, error) {
	return s.cart, nil
}

type stubCatalog map[string]*products.Product

func (s stubCatalog) Get(_ context.Context, id string) (*products.Product, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func newRouter(userCart *cartsvc.Cart) http.Handler {
	carts := stubCarts{cart: userCart}
	catalog := stubCatalog{
		"p1": {ID: "p1", Name: "Áo", Price: 100000, Image: "a.png"},
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithIdentity(r.Context(), &identity.Identity{UserID: "u1", Role: enums.RoleCustomer})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/cart", CartFetch(carts, nil))
	r.Post("/cart/items", CartAddItem(carts, catalog, nil))
	r.Post("/cart/items/{productId}/decrement", CartDecrementItem(carts, nil))
	r.Delete("/cart/items/{productId}", CartRemoveItem(carts, nil))
	r.Delete("/cart", CartClear(carts, nil))
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, cartResponse) {
	t.Helper()
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(method, path, strings.NewReader(body)))
	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if resp.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	}
	return resp.Code, envelope.Data
}

func TestCartLifecycle(t *testing.T) {
	userCart := cartsvc.New("u1", nil, nil, nil)
	h := newRouter(userCart)

	code, body := do(t, h, http.MethodPost, "/cart/items", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, code)
	code, body = do(t, h, http.MethodPost, "/cart/items", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Items, 1)
	require.Equal(t, 2, body.Count)
	require.EqualValues(t, 200000, body.Subtotal)
	require.EqualValues(t, 200000, body.Items[0].LineTotal)

	code, body = do(t, h, http.MethodPost, "/cart/items/p1/decrement", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, body.Count)

	code, body = do(t, h, http.MethodDelete, "/cart/items/p1", "")
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, body.Items)
	require.Zero(t, body.Count)

	code, body = do(t, h, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, body.Items)
}

func TestCartAddUnknownProduct(t *testing.T) {
	h := newRouter(cartsvc.New("u1", nil, nil, nil))

	code, _ := do(t, h, http.MethodPost, "/cart/items", `{"productId":"nope"}`)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodPost, "/cart/items", `{}`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestCartClear(t *testing.T) {
	userCart := cartsvc.New("u1", []cartsvc.LineItem{{ID: "p1", Name: "Áo", Price: 100000, Quantity: 3}}, nil, nil)
	h := newRouter(userCart)

	code, body := do(t, h, http.MethodDelete, "/cart", "")
	require.Equal(t, http.StatusOK, code)
	require.Zero(t, body.Count)
	require.Zero(t, userCart.Count())
}

func TestCartRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	CartFetch(stubCarts{cart: cartsvc.New("u1", nil, nil, nil)}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
