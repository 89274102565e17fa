package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/namthanhstores/storefront-backend/internal/cart"
	"github.com/namthanhstores/storefront-backend/internal/payment"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

type stubCarts struct {
	cart *cart.Cart
	err  error
}

func (s *stubCarts) Open(context.Context, string) (*cart.Cart, error) {
	return s.cart, s.err
}

type stubInitiator struct {
	req    payment.InitiateRequest
	calls  int
	result *payment.InitiateResult
	err    error
}

func (s *stubInitiator) Initiate(_ context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	s.calls++
	s.req = req
	return s.result, s.err
}

type stubWatchers struct {
	started []string
	settle  payment.SettleFunc
}

func (s *stubWatchers) Start(_ context.Context, userID, transactionID string, onSettle payment.SettleFunc) (*payment.Watcher, error) {
	s.started = append(s.started, userID+"/"+transactionID)
	s.settle = onSettle
	return nil, nil
}

func selection() []cart.SelectedItem {
	return []cart.SelectedItem{
		{ID: "p1", Name: "Áo", Price: 100000, ItemCount: 2, Image: "a.png"},
		{ID: "p2", Name: "Quần", Price: 50000, ItemCount: 1, Image: "b.png"},
	}
}

func validProfile() ShippingProfile {
	return ShippingProfile{Name: "Lan", Phone: "0912345678", Address: "1 Lê Lợi, Bến Nghé, Quận 1, Hồ Chí Minh"}
}

func newTestCoordinator(t *testing.T, initiator *stubInitiator) (*Coordinator, *cart.Cart, *stubWatchers) {
	t.Helper()
	userCart := cart.New("u1", []cart.LineItem{
		{ID: "p1", Name: "Áo", Price: 100000, Quantity: 2},
		{ID: "p2", Name: "Quần", Price: 50000, Quantity: 1},
	}, nil, nil)
	watchers := &stubWatchers{}
	c, err := NewCoordinator(Params{
		Carts:           &stubCarts{cart: userCart},
		Initiator:       initiator,
		Watchers:        watchers,
		CashShippingFee: DefaultCashShippingFee,
	})
	require.NoError(t, err)
	return c, userCart, watchers
}

func TestBeginCheckoutShippingFee(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestCoordinator(t, &stubInitiator{})

	cash, err := c.BeginCheckout(selection(), 250000, 3, enums.PaymentMethodCash)
	require.NoError(t, err)
	require.Equal(t, types.Money(10000), cash.ShippingFee)
	require.Equal(t, types.Money(260000), cash.TotalAmount)

	prepaid, err := c.BeginCheckout(selection(), 250000, 3, enums.PaymentMethodPrepaid)
	require.NoError(t, err)
	require.Equal(t, types.Money(0), prepaid.ShippingFee)
	require.Equal(t, types.Money(250000), prepaid.TotalAmount)
}

func TestBeginCheckoutRejectsBadSelections(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestCoordinator(t, &stubInitiator{})

	_, err := c.BeginCheckout(nil, 0, 0, enums.PaymentMethodCash)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = c.BeginCheckout(selection(), 240000, 3, enums.PaymentMethodCash)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = c.BeginCheckout(selection(), 250000, 3, enums.PaymentMethod("bitcoin"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSubmitNamesInvalidField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(p *ShippingProfile)
		field   string
		message string
	}{
		{"missing name", func(p *ShippingProfile) { p.Name = "  " }, "name", "name is required"},
		{"missing phone", func(p *ShippingProfile) { p.Phone = "" }, "phone", "phone is required"},
		{"landline phone", func(p *ShippingProfile) { p.Phone = "0241234567" }, "phone", "phone must be a valid Vietnamese mobile number"},
		{"short phone", func(p *ShippingProfile) { p.Phone = "091234567" }, "phone", "phone must be a valid Vietnamese mobile number"},
		{"missing address", func(p *ShippingProfile) { p.Address = "" }, "address", "address is required"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			initiator := &stubInitiator{}
			c, userCart, _ := newTestCoordinator(t, initiator)
			profile := validProfile()
			tc.mutate(&profile)

			_, err := c.Submit(context.Background(), SubmitInput{
				UserID: "u1", Items: selection(), TotalPrice: 250000, TotalQuantity: 3,
				Method: enums.PaymentMethodCash, Profile: profile,
			})
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			require.Equal(t, pkgerrors.CodeValidation, typed.Code())
			require.Equal(t, tc.message, typed.Message())
			require.Equal(t, tc.field, typed.Details().(map[string]any)["field"])
			require.Zero(t, initiator.calls)
			require.Equal(t, 3, userCart.Count())
		})
	}
}

func TestSubmitPaymentFailureLeavesCart(t *testing.T) {
	t.Parallel()
	initiator := &stubInitiator{err: errors.New("gateway timeout")}
	c, userCart, watchers := newTestCoordinator(t, initiator)

	_, err := c.Submit(context.Background(), SubmitInput{
		UserID: "u1", Items: selection(), TotalPrice: 250000, TotalQuantity: 3,
		Method: enums.PaymentMethodPrepaid, Profile: validProfile(),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePayment), "got %v", err)
	require.Equal(t, 3, userCart.Count())
	require.Len(t, userCart.Items(), 2)
	require.Empty(t, watchers.started)
}

func TestSubmitSuccessClearsCartAndWatches(t *testing.T) {
	t.Parallel()
	initiator := &stubInitiator{result: &payment.InitiateResult{TransactionID: "260301_t1", RedirectURL: "https://gateway/t1"}}
	c, userCart, watchers := newTestCoordinator(t, initiator)

	res, err := c.Submit(context.Background(), SubmitInput{
		UserID: "u1", Email: "lan@example.com", Items: selection(), TotalPrice: 250000, TotalQuantity: 3,
		Method: enums.PaymentMethodCash, Profile: validProfile(), Note: "Giao giờ hành chính",
	})
	require.NoError(t, err)
	require.Equal(t, "260301_t1", res.TransactionID)
	require.Equal(t, "https://gateway/t1", res.RedirectURL)
	require.Equal(t, types.Money(260000), res.Quote.TotalAmount)

	require.Equal(t, types.Money(260000), initiator.req.Amount)
	require.Equal(t, "lan@example.com", initiator.req.Email)
	require.Len(t, initiator.req.Items, 2)
	require.Equal(t, 2, initiator.req.Items[0].ItemCount)

	require.Equal(t, 0, userCart.Count())
	require.Equal(t, []string{"u1/260301_t1"}, watchers.started)

	_, _ = userCart.AddItem(context.Background(), cart.LineItem{ID: "p3", Name: "Mũ", Price: 20000})
	watchers.settle(context.Background(), nil)
	require.Equal(t, 0, userCart.Count())
}

func TestAddressPartsString(t *testing.T) {
	t.Parallel()
	addr := AddressParts{Detail: "12 Nguyễn Trãi", Ward: "Phường 2", District: "Quận 5", Province: "Hồ Chí Minh"}
	require.Equal(t, "12 Nguyễn Trãi, Phường 2, Quận 5, Hồ Chí Minh", addr.String())
	require.Equal(t, "Quận 5, Hồ Chí Minh", AddressParts{District: "Quận 5", Province: " Hồ Chí Minh "}.String())
}

func TestValidPhone(t *testing.T) {
	t.Parallel()
	for phone, want := range map[string]bool{
		"0312345678":   true,
		"0512345678":   true,
		"0712345678":   true,
		"0812345678":   true,
		"0912345678":   true,
		"0212345678":   false,
		"0412345678":   false,
		"091234567":    false,
		"09123456789":  false,
		"+84912345678": false,
		"09a2345678":   false,
	} {
		require.Equal(t, want, ValidPhone(phone), phone)
	}
}
