package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

// Watchers tracks the payment watchers of every signed-in user so they can
// be stopped together on logout.
type Watchers struct {
	sub  Subscriber
	logg *logger.Logger

	mu     sync.Mutex
	byUser map[string]map[string]*Watcher
}

// NewWatchers builds an empty registry.
func NewWatchers(sub Subscriber, logg *logger.Logger) (*Watchers, error) {
	if sub == nil {
		return nil, fmt.Errorf("subscriber required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Watchers{sub: sub, logg: logg, byUser: map[string]map[string]*Watcher{}}, nil
}

// Start watches transactionID for userID, replacing an earlier watcher on the
// same transaction.
func (r *Watchers) Start(ctx context.Context, userID, transactionID string, onSettle SettleFunc) (*Watcher, error) {
	w, err := Watch(ctx, r.sub, userID, transactionID, onSettle, r.logg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.byUser[userID] == nil {
		r.byUser[userID] = map[string]*Watcher{}
	}
	previous := r.byUser[userID][transactionID]
	r.byUser[userID][transactionID] = w
	r.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}
	return w, nil
}

// Get returns the watcher of one transaction.
func (r *Watchers) Get(userID, transactionID string) (*Watcher, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byUser[userID][transactionID]
	return w, ok
}

// Stop stops and forgets one watcher. It reports whether one existed.
func (r *Watchers) Stop(userID, transactionID string) bool {
	r.mu.Lock()
	w, ok := r.byUser[userID][transactionID]
	if ok {
		delete(r.byUser[userID], transactionID)
		if len(r.byUser[userID]) == 0 {
			delete(r.byUser, userID)
		}
	}
	r.mu.Unlock()

	if ok {
		w.Stop()
	}
	return ok
}

// StopUser stops every watcher of userID. Its signature matches
// cart.CloseHook.
func (r *Watchers) StopUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	set := r.byUser[userID]
	delete(r.byUser, userID)
	r.mu.Unlock()

	for _, w := range set {
		w.Stop()
	}
	if len(set) > 0 {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"user_id":  userID,
			"watchers": len(set),
		}), "payment watchers stopped")
	}
	return nil
}

// StopAll stops every tracked watcher.
func (r *Watchers) StopAll() {
	r.mu.Lock()
	all := r.byUser
	r.byUser = map[string]map[string]*Watcher{}
	r.mu.Unlock()

	for _, set := range all {
		for _, w := range set {
			w.Stop()
		}
	}
}

// Count returns the number of tracked watchers.
func (r *Watchers) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, set := range r.byUser {
		n += len(set)
	}
	return n
}
