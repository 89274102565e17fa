package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/internal/orders"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

// Subscriber is the slice of docstore.Store a Watcher needs.
type Subscriber interface {
	Subscribe(ctx context.Context, collection, id string, onChange func(*docstore.Document)) (docstore.Unsubscribe, error)
}

// SettleFunc runs once when the order document for a transaction settles.
type SettleFunc func(ctx context.Context, order *orders.Order)

// Watcher waits for the order document of one payment transaction. The first
// snapshot that decodes into a valid order settles it; the subscription is
// released right after. There is no timeout.
type Watcher struct {
	transactionID string
	userID        string
	onSettle      SettleFunc
	logg          *logger.Logger
	ctx           context.Context

	completed atomic.Bool
	order     atomic.Pointer[orders.Order]
	done      chan struct{}

	settleOnce sync.Once
	stopOnce   sync.Once
	mu         sync.Mutex
	stopped    bool
	unsub      docstore.Unsubscribe
}

// Watch subscribes to orders/{transactionID}. onSettle may be nil.
func Watch(ctx context.Context, sub Subscriber, userID, transactionID string, onSettle SettleFunc, logg *logger.Logger) (*Watcher, error) {
	if sub == nil {
		return nil, fmt.Errorf("subscriber required")
	}
	if transactionID == "" {
		return nil, fmt.Errorf("transaction id required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	w := &Watcher{
		transactionID: transactionID,
		userID:        userID,
		onSettle:      onSettle,
		logg:          logg,
		ctx: logg.WithFields(context.WithoutCancel(ctx), map[string]any{
			"user_id":        userID,
			"transaction_id": transactionID,
		}),
		done: make(chan struct{}),
	}

	unsub, err := sub.Subscribe(ctx, orders.Collection, transactionID, w.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe to order %s: %w", transactionID, err)
	}

	w.mu.Lock()
	w.unsub = unsub
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		unsub()
	}
	w.logg.Info(w.ctx, "payment watcher started")
	return w, nil
}

// TransactionID is the watched payment transaction.
func (w *Watcher) TransactionID() string {
	return w.transactionID
}

// UserID is the buyer who started the checkout.
func (w *Watcher) UserID() string {
	return w.userID
}

// Completed reports whether the order settled.
func (w *Watcher) Completed() bool {
	return w.completed.Load()
}

// Order is the settled order, nil until Completed.
func (w *Watcher) Order() *orders.Order {
	return w.order.Load()
}

// Done is closed on settlement.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Stop releases the subscription. It is safe to call any number of times and
// from any goroutine.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		unsub := w.unsub
		w.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})
}

func (w *Watcher) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

func (w *Watcher) handle(doc *docstore.Document) {
	if doc == nil || w.isStopped() {
		return
	}
	order, err := orders.Decode(*doc)
	if err != nil {
		w.logg.Debug(w.logg.WithField(w.ctx, "reason", err.Error()), "order document not settled yet")
		return
	}

	w.settleOnce.Do(func() {
		w.order.Store(order)
		w.completed.Store(true)
		close(w.done)
		w.logg.Info(w.logg.WithField(w.ctx, "status", order.Status.String()), "payment settled")
		if w.onSettle != nil {
			w.onSettle(w.ctx, order)
		}
	})
	w.Stop()
}
