package checkout

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/namthanhstores/storefront-backend/internal/cart"
	"github.com/namthanhstores/storefront-backend/internal/orders"
	"github.com/namthanhstores/storefront-backend/internal/payment"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/metrics"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

// DefaultCashShippingFee is the cash-on-delivery surcharge when none is configured.
const DefaultCashShippingFee types.Money = 10000

// CartProvider hands out the live cart of a user.
type CartProvider interface {
	Open(ctx context.Context, userID string) (*cart.Cart, error)
}

// WatcherStarter begins observing a payment transaction.
type WatcherStarter interface {
	Start(ctx context.Context, userID, transactionID string, onSettle payment.SettleFunc) (*payment.Watcher, error)
}

// Quote is a priced selection.
type Quote struct {
	Items         []cart.SelectedItem `json:"items"`
	TotalPrice    types.Money         `json:"totalPrice"`
	TotalQuantity int                 `json:"totalQuantity"`
	Method        enums.PaymentMethod `json:"paymentMethod"`
	ShippingFee   types.Money         `json:"shippingFee"`
	TotalAmount   types.Money         `json:"totalAmount"`
}

// SubmitInput is a checkout submission.
type SubmitInput struct {
	UserID        string
	Email         string
	Items         []cart.SelectedItem
	TotalPrice    types.Money
	TotalQuantity int
	Method        enums.PaymentMethod
	Profile       ShippingProfile
	Note          string
}

// SubmitResult is returned once the gateway accepted the payment.
type SubmitResult struct {
	Quote         Quote  `json:"quote"`
	TransactionID string `json:"transactionId"`
	RedirectURL   string `json:"redirectUrl"`
}

// Params wires a Coordinator.
type Params struct {
	Carts           CartProvider
	Initiator       payment.Initiator
	Watchers        WatcherStarter
	CashShippingFee types.Money
	Logger          *logger.Logger
	Metrics         *metrics.Storefront
}

// Coordinator turns a cart selection into a payment and hands the pending
// transaction to a watcher.
type Coordinator struct {
	carts     CartProvider
	initiator payment.Initiator
	watchers  WatcherStarter
	cashFee   types.Money
	validate  *validator.Validate
	logg      *logger.Logger
	metrics   *metrics.Storefront
}

// NewCoordinator validates dependencies and builds a Coordinator.
func NewCoordinator(params Params) (*Coordinator, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart provider required")
	}
	if params.Initiator == nil {
		return nil, fmt.Errorf("payment initiator required")
	}
	if params.Watchers == nil {
		return nil, fmt.Errorf("payment watchers required")
	}
	if params.CashShippingFee < 0 {
		return nil, fmt.Errorf("cash shipping fee must not be negative")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Coordinator{
		carts:     params.Carts,
		initiator: params.Initiator,
		watchers:  params.Watchers,
		cashFee:   params.CashShippingFee,
		validate:  newValidator(),
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// ShippingFee is the surcharge for method.
func (c *Coordinator) ShippingFee(method enums.PaymentMethod) types.Money {
	if method == enums.PaymentMethodCash {
		return c.cashFee
	}
	return 0
}

// BeginCheckout prices a selection. The caller's totals must match the
// selection they describe.
func (c *Coordinator) BeginCheckout(selected []cart.SelectedItem, totalPrice types.Money, totalQuantity int, method enums.PaymentMethod) (*Quote, error) {
	if len(selected) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "select at least one item").
			WithDetails(map[string]any{"field": "items"})
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method)).
			WithDetails(map[string]any{"field": "paymentMethod"})
	}
	for _, item := range selected {
		if item.ID == "" || item.ItemCount < 1 || item.Price < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid selected item").
				WithDetails(map[string]any{"field": "items", "item_id": item.ID})
		}
	}
	price, qty := cart.SelectionTotals(selected)
	if price != totalPrice || qty != totalQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "totals do not match the selection").
			WithDetails(map[string]any{
				"expected_total_price":    int64(price),
				"expected_total_quantity": qty,
			})
	}

	fee := c.ShippingFee(method)
	items := make([]cart.SelectedItem, len(selected))
	copy(items, selected)
	return &Quote{
		Items:         items,
		TotalPrice:    totalPrice,
		TotalQuantity: totalQuantity,
		Method:        method,
		ShippingFee:   fee,
		TotalAmount:   totalPrice.Add(fee),
	}, nil
}

// Submit validates the shipping profile, asks the gateway to open a payment
// and, on success, clears the cart and starts watching the transaction. On
// any failure the cart is left as it was.
func (c *Coordinator) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if input.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	ctx = c.logg.WithUserID(ctx, input.UserID)

	quote, err := c.BeginCheckout(input.Items, input.TotalPrice, input.TotalQuantity, input.Method)
	if err != nil {
		return nil, err
	}
	profile := input.Profile.normalized()
	if err := c.validateProfile(profile); err != nil {
		return nil, err
	}
	userCart, err := c.carts.Open(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	email := profile.Email
	if email == "" {
		email = input.Email
	}
	items := make([]payment.Item, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, payment.Item{
			ID:        item.ID,
			Name:      item.Name,
			Price:     item.Price,
			ItemCount: item.ItemCount,
			Image:     item.Image,
		})
	}

	res, err := c.initiator.Initiate(ctx, payment.InitiateRequest{
		Amount:  quote.TotalAmount,
		Items:   items,
		Name:    profile.Name,
		Phone:   profile.Phone,
		Address: profile.Address,
		Note:    input.Note,
		UserID:  input.UserID,
		Email:   email,
	})
	if err != nil {
		c.metrics.IncPaymentInitiation(metrics.ResultFailure)
		c.logg.Error(ctx, "payment initiation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodePayment, err, "could not create the payment, please try again")
	}
	c.metrics.IncPaymentInitiation(metrics.ResultSuccess)
	ctx = c.logg.WithField(ctx, "transaction_id", res.TransactionID)

	userCart.Clear(ctx)

	settle := func(ctx context.Context, _ *orders.Order) {
		userCart.Clear(ctx)
	}
	if _, err := c.watchers.Start(ctx, input.UserID, res.TransactionID, settle); err != nil {
		c.logg.Error(ctx, "could not watch payment transaction", err)
	}

	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"amount": int64(quote.TotalAmount),
		"method": quote.Method.String(),
		"lines":  len(quote.Items),
	}), "checkout submitted")

	return &SubmitResult{
		Quote:         *quote,
		TransactionID: res.TransactionID,
		RedirectURL:   res.RedirectURL,
	}, nil
}
