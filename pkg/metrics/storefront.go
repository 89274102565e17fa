package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

// Storefront records cart, order and payment activity. A nil *Storefront is
// safe to use and records nothing.
type Storefront struct {
	cartSync           *prometheus.CounterVec
	cartSyncDuration   prometheus.Histogram
	orderTransitions   *prometheus.CounterVec
	productRatings     prometheus.Counter
	paymentInitiations *prometheus.CounterVec
}

// NewStorefront registers the storefront metrics on the provided registerer.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	cartSync := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_total",
		Help: "Cart snapshot batch writes by result.",
	}, []string{"result"})
	cartSyncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of cart snapshot batch writes in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transition requests by action and result.",
	}, []string{"action", "result"})
	productRatings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_ratings_total",
		Help: "Star ratings applied to product aggregates.",
	})
	paymentInitiations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiations_total",
		Help: "Payment initiation attempts by result.",
	}, []string{"result"})
	reg.MustRegister(cartSync, cartSyncDuration, orderTransitions, productRatings, paymentInitiations)
	return &Storefront{
		cartSync:           cartSync,
		cartSyncDuration:   cartSyncDuration,
		orderTransitions:   orderTransitions,
		productRatings:     productRatings,
		paymentInitiations: paymentInitiations,
	}
}

// ObserveCartSync records one batch write and its duration.
func (s *Storefront) ObserveCartSync(result string, duration time.Duration) {
	if s == nil || s.cartSync == nil {
		return
	}
	s.cartSync.WithLabelValues(normalizeLabel(result)).Inc()
	s.cartSyncDuration.Observe(duration.Seconds())
}

// IncOrderTransition counts a transition request.
func (s *Storefront) IncOrderTransition(action, result string) {
	if s == nil || s.orderTransitions == nil {
		return
	}
	s.orderTransitions.WithLabelValues(normalizeLabel(action), normalizeLabel(result)).Inc()
}

// IncProductRating counts an applied star rating.
func (s *Storefront) IncProductRating() {
	if s == nil || s.productRatings == nil {
		return
	}
	s.productRatings.Inc()
}

// IncPaymentInitiation counts a payment initiation attempt.
func (s *Storefront) IncPaymentInitiation(result string) {
	if s == nil || s.paymentInitiations == nil {
		return
	}
	s.paymentInitiations.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
