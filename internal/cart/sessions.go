package cart

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/metrics"
)

// CloseHook runs when a user's session ends, e.g. to stop payment watchers.
type CloseHook func(ctx context.Context, userID string) error

type session struct {
	cart *Cart
	sync *Synchronizer
}

// Sessions owns one cart per signed-in user. A cart is loaded from the remote
// mirror on first use and discarded from memory on Close; the mirror stays.
type Sessions struct {
	store    docstore.Store
	repo     *Repository
	logg     *logger.Logger
	syncOpts SyncOptions

	mu       sync.Mutex
	sessions map[string]*session
	hooks    []CloseHook
	loads    singleflight.Group
}

// SessionsConfig carries the optional dependencies of Sessions.
type SessionsConfig struct {
	Store   docstore.Store
	Logger  *logger.Logger
	Metrics *metrics.Storefront
	Sync    SyncOptions
}

// NewSessions builds the session registry.
func NewSessions(cfg SessionsConfig) (*Sessions, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	repo, err := NewRepository(cfg.Store, cfg.Logger)
	if err != nil {
		return nil, err
	}
	if cfg.Sync.Metrics == nil {
		cfg.Sync.Metrics = cfg.Metrics
	}
	return &Sessions{
		store:    cfg.Store,
		repo:     repo,
		logg:     cfg.Logger,
		syncOpts: cfg.Sync,
		sessions: map[string]*session{},
	}, nil
}

// OnClose registers a hook run by Close and CloseAll.
func (s *Sessions) OnClose(hook CloseHook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

// Open returns the cart of userID, loading it on first use. Concurrent first
// calls share one load.
func (s *Sessions) Open(ctx context.Context, userID string) (*Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id required")
	}
	if existing := s.lookup(userID); existing != nil {
		return existing.cart, nil
	}

	v, err, _ := s.loads.Do(userID, func() (any, error) {
		if existing := s.lookup(userID); existing != nil {
			return existing, nil
		}
		items, err := s.repo.Load(ctx, userID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ID)
		}
		synchronizer, err := NewSynchronizer(userID, s.store, ids, s.logg, s.syncOpts)
		if err != nil {
			return nil, err
		}
		sess := &session{
			cart: New(userID, items, synchronizer, s.logg),
			sync: synchronizer,
		}
		s.mu.Lock()
		s.sessions[userID] = sess
		s.mu.Unlock()

		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"user_id": userID,
			"lines":   len(items),
		}), "cart session opened")
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session).cart, nil
}

// Flush waits for the pending snapshot of userID, if any, to be written.
func (s *Sessions) Flush(ctx context.Context, userID string) error {
	sess := s.lookup(userID)
	if sess == nil {
		return nil
	}
	return sess.sync.Flush(ctx)
}

// Close flushes and discards the cart of userID and runs the close hooks.
// Closing a user without a session still runs the hooks.
func (s *Sessions) Close(ctx context.Context, userID string) error {
	s.mu.Lock()
	sess := s.sessions[userID]
	delete(s.sessions, userID)
	hooks := append([]CloseHook(nil), s.hooks...)
	s.mu.Unlock()

	var errs error
	if sess != nil {
		errs = multierr.Append(errs, sess.sync.Close(ctx))
	}
	for _, hook := range hooks {
		errs = multierr.Append(errs, hook(ctx, userID))
	}
	s.logg.Info(s.logg.WithField(ctx, "user_id", userID), "cart session closed")
	return errs
}

// CloseAll closes every open session.
func (s *Sessions) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	users := make([]string, 0, len(s.sessions))
	for userID := range s.sessions {
		users = append(users, userID)
	}
	s.mu.Unlock()

	var errs error
	for _, userID := range users {
		errs = multierr.Append(errs, s.Close(ctx, userID))
	}
	return errs
}

func (s *Sessions) lookup(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}
