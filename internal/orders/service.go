package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/metrics"
)

const minFeedbackLength = 5

// Service exposes order reads and every mutation an order can undergo.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID string) (*Order, error)
	ListByUser(ctx context.Context, actor Actor) ([]Order, error)
	Transition(ctx context.Context, input TransitionInput) (*Order, error)
	Cancel(ctx context.Context, actor Actor, orderID string) (*Order, error)
	ConfirmReceipt(ctx context.Context, actor Actor, orderID string) (*Order, error)
	Advance(ctx context.Context, actor Actor, orderID string) (*Order, error)
	RateItem(ctx context.Context, input RateInput) (*RateResult, error)
	LeaveFeedback(ctx context.Context, input FeedbackInput) (*Order, error)
}

// TransitionInput names an action requested on an order.
type TransitionInput struct {
	OrderID string
	Action  enums.OrderAction
	Actor   Actor
}

// RateInput is one star for one line of a completed order.
type RateInput struct {
	OrderID   string
	ProductID string
	Star      int
	Actor     Actor
}

// RateResult reports the product aggregate after a rating.
type RateResult struct {
	Order     *Order
	ProductID string
	Rating    Rating
}

// FeedbackInput is the review left on a completed order.
type FeedbackInput struct {
	OrderID string
	Rate    int
	Comment string
	Actor   Actor
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Store     docstore.Store
	Logger    *logger.Logger
	Metrics   *metrics.Storefront
	Publisher EventPublisher
	Now       func() time.Time
}

type service struct {
	store     docstore.Store
	engine    Engine
	logg      *logger.Logger
	metrics   *metrics.Storefront
	publisher EventPublisher
	now       func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Publisher == nil {
		params.Publisher = noopPublisher{}
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		store:     params.Store,
		logg:      params.Logger,
		metrics:   params.Metrics,
		publisher: params.Publisher,
		now:       params.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	doc, err := s.store.Get(ctx, Collection, orderID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	order, err := Decode(*doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode order")
	}
	if !actor.IsStaff() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// ListByUser returns the actor's orders, newest first. Malformed order
// documents are skipped.
func (s *service) ListByUser(ctx context.Context, actor Actor) ([]Order, error) {
	if actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	docs, err := s.store.Query(ctx, Collection, docstore.Where("userId", actor.UserID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]Order, 0, len(docs))
	for _, doc := range docs {
		order, err := Decode(doc)
		if err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id": doc.ID,
				"error":    err.Error(),
			}), "skipping malformed order document")
			continue
		}
		out = append(out, *order)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *service) Cancel(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	return s.Transition(ctx, TransitionInput{OrderID: orderID, Action: enums.OrderActionCancel, Actor: actor})
}

func (s *service) ConfirmReceipt(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	return s.Transition(ctx, TransitionInput{OrderID: orderID, Action: enums.OrderActionConfirmReceipt, Actor: actor})
}

func (s *service) Advance(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	return s.Transition(ctx, TransitionInput{OrderID: orderID, Action: enums.OrderActionAdvance, Actor: actor})
}

// Transition applies input.Action inside a store transaction so the status
// written is always derived from the status read.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*Order, error) {
	ctx = s.logg.WithOrderID(ctx, input.OrderID)
	var (
		updated *Order
		from    enums.OrderStatus
	)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, order, err := loadOrder(tx, input.OrderID)
		if err != nil {
			return err
		}
		to, err := s.engine.Apply(input.Actor, order, input.Action)
		if err != nil {
			return err
		}
		from = order.Status
		data := doc.Data
		data["status"] = to.String()
		if err := tx.Set(Collection, input.OrderID, data); err != nil {
			return err
		}
		order.Status = to
		updated = order
		return nil
	})
	if err != nil {
		s.metrics.IncOrderTransition(input.Action.String(), resultFor(err))
		return nil, asServiceError(err, "update order status")
	}
	s.metrics.IncOrderTransition(input.Action.String(), metrics.ResultSuccess)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"action": input.Action.String(),
		"from":   from.String(),
		"to":     updated.Status.String(),
	}), "order status changed")

	event := StatusChangedEvent{
		OrderID:    updated.ID,
		UserID:     updated.UserID,
		Action:     input.Action,
		From:       from,
		To:         updated.Status,
		ActorID:    input.Actor.UserID,
		ActorRole:  input.Actor.Role,
		OccurredAt: s.now(),
	}
	if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
		s.logg.Error(ctx, "failed to publish order status event", err)
	}
	return updated, nil
}

// RateItem records one star for a line of a completed order and folds it into
// the product's running mean. Both documents change in one transaction.
func (s *service) RateItem(ctx context.Context, input RateInput) (*RateResult, error) {
	if err := ValidateStar(input.Star); err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID)

	var result RateResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		orderDoc, order, err := loadOrder(tx, input.OrderID)
		if err != nil {
			return err
		}
		if err := checkReviewable(input.Actor, order); err != nil {
			return err
		}
		if !order.HasItem(input.ProductID) {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not part of this order").
				WithDetails(map[string]any{"product_id": input.ProductID})
		}
		if order.Ratings.Has(input.ProductID) {
			return pkgerrors.New(pkgerrors.CodeConflict, "item already rated").
				WithDetails(map[string]any{"product_id": input.ProductID})
		}

		productDoc, err := tx.Get(ProductsCollection, input.ProductID)
		if errors.Is(err, docstore.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err != nil {
			return err
		}
		current, err := DecodeRating(*productDoc)
		if err != nil {
			return err
		}
		next, err := ComputeRating(current, input.Star)
		if err != nil {
			return err
		}

		order.Ratings = order.Ratings.With(input.ProductID, input.Star)
		orderData := orderDoc.Data
		orderData["ratings"] = order.Ratings.ToMap()
		if err := tx.Set(Collection, input.OrderID, orderData); err != nil {
			return err
		}
		productData := productDoc.Data
		productData["rate"] = next.RateString()
		productData["rateCount"] = next.Count
		if err := tx.Set(ProductsCollection, input.ProductID, productData); err != nil {
			return err
		}

		result = RateResult{Order: order, ProductID: input.ProductID, Rating: next}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "rate order item")
	}
	s.metrics.IncProductRating()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": input.ProductID,
		"star":       input.Star,
		"rate":       result.Rating.RateString(),
		"rate_count": result.Rating.Count,
	}), "product rated")
	return &result, nil
}

// LeaveFeedback stores the single review allowed on a completed order.
func (s *service) LeaveFeedback(ctx context.Context, input FeedbackInput) (*Order, error) {
	if err := ValidateStar(input.Rate); err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(input.Comment)
	if utf8.RuneCountInString(comment) < minFeedbackLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment too short").
			WithDetails(map[string]any{"field": "comment", "min_length": minFeedbackLength})
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID)

	var updated *Order
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, order, err := loadOrder(tx, input.OrderID)
		if err != nil {
			return err
		}
		if err := checkReviewable(input.Actor, order); err != nil {
			return err
		}
		if order.Feedback != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "feedback already submitted")
		}
		order.Feedback = &Feedback{Rate: input.Rate, Comment: comment}
		data := doc.Data
		data["feedback"] = map[string]any{"rate": int64(input.Rate), "comment": comment}
		if err := tx.Set(Collection, input.OrderID, data); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "save order feedback")
	}
	s.logg.Info(ctx, "order feedback saved")
	return updated, nil
}

// GroupByStatus buckets orders by status, keeping input order within each.
func GroupByStatus(list []Order) map[enums.OrderStatus][]Order {
	out := make(map[enums.OrderStatus][]Order, len(enums.OrderStatuses()))
	for _, status := range enums.OrderStatuses() {
		out[status] = []Order{}
	}
	for _, order := range list {
		out[order.Status] = append(out[order.Status], order)
	}
	return out
}

func loadOrder(tx docstore.Tx, orderID string) (*docstore.Document, *Order, error) {
	doc, err := tx.Get(Collection, orderID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, nil, err
	}
	order, err := Decode(*doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, order, nil
}

func checkReviewable(actor Actor, order *Order) error {
	if actor.UserID == "" || actor.UserID != order.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	if order.Status != enums.OrderStatusCompleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order must be %s to be reviewed, current status %s", enums.OrderStatusCompleted, order.Status)).
			WithDetails(map[string]any{"current_status": order.Status.String()})
	}
	return nil
}

func asServiceError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	switch {
	case errors.Is(err, docstore.ErrMalformed):
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
	case errors.Is(err, docstore.ErrConflict):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, action)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
}

func resultFor(err error) string {
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) || pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		return metrics.ResultRejected
	}
	return metrics.ResultFailure
}
