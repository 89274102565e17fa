package cart

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/metrics"
)

const defaultWriteTimeout = 10 * time.Second

type batchWriter interface {
	BatchWrite(ctx context.Context, ops []docstore.WriteOp) error
}

// Submission is the quantity requested for one id in a snapshot write.
type Submission struct {
	Item     LineItem
	Quantity int
}

// Submissions lists every line of snapshot plus a zero-quantity entry for each
// id still mirrored remotely but no longer in the cart.
func Submissions(snapshot Snapshot, remote map[string]struct{}) []Submission {
	present := make(map[string]struct{}, len(snapshot.Items))
	out := make([]Submission, 0, len(snapshot.Items)+len(remote))
	for _, item := range snapshot.Items {
		present[item.ID] = struct{}{}
		out = append(out, Submission{Item: item, Quantity: item.Quantity})
	}
	for id := range remote {
		if _, ok := present[id]; ok {
			continue
		}
		out = append(out, Submission{Item: LineItem{ID: id}, Quantity: 0})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.ID < out[j].Item.ID })
	return out
}

// BuildBatch turns a snapshot into one atomic batch: positive quantities are
// upserted, a quantity of zero deletes the document.
func BuildBatch(collection string, snapshot Snapshot, remote map[string]struct{}) []docstore.WriteOp {
	subs := Submissions(snapshot, remote)
	ops := make([]docstore.WriteOp, 0, len(subs))
	for _, sub := range subs {
		if sub.Quantity <= 0 {
			ops = append(ops, docstore.WriteOp{Collection: collection, ID: sub.Item.ID, Kind: enums.WriteKindDelete})
			continue
		}
		item := sub.Item
		item.Quantity = sub.Quantity
		ops = append(ops, docstore.WriteOp{
			Collection: collection,
			ID:         item.ID,
			Kind:       enums.WriteKindUpsert,
			Data:       EncodeLineItem(item),
		})
	}
	return ops
}

// SyncOptions tunes a Synchronizer.
type SyncOptions struct {
	WriteTimeout time.Duration
	Metrics      *metrics.Storefront
}

// Synchronizer mirrors cart snapshots into the remote store. Callers never
// wait on it: Enqueue replaces any snapshot still waiting, and a single worker
// writes one snapshot at a time, so writes land in version order.
type Synchronizer struct {
	userID     string
	collection string
	writer     batchWriter
	logg       *logger.Logger
	metrics    *metrics.Storefront
	timeout    time.Duration

	mu          sync.Mutex
	pending     *Snapshot
	queued      uint64
	written     uint64
	inflight    bool
	stopped     bool
	remote      map[string]struct{}
	idleWaiters []chan struct{}

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSynchronizer starts the worker for userID. remoteIDs are the line ids
// known to exist in the remote mirror.
func NewSynchronizer(userID string, writer batchWriter, remoteIDs []string, logg *logger.Logger, opts SyncOptions) (*Synchronizer, error) {
	if writer == nil {
		return nil, fmt.Errorf("batch writer required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user id required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	remote := make(map[string]struct{}, len(remoteIDs))
	for _, id := range remoteIDs {
		remote[id] = struct{}{}
	}
	s := &Synchronizer{
		userID:     userID,
		collection: CollectionPath(userID),
		writer:     writer,
		logg:       logg,
		metrics:    opts.Metrics,
		timeout:    opts.WriteTimeout,
		remote:     remote,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

// Enqueue queues snapshot for writing. Snapshots older than one already
// queued are dropped.
func (s *Synchronizer) Enqueue(snapshot Snapshot) {
	s.mu.Lock()
	if s.stopped || snapshot.Version <= s.queued {
		s.mu.Unlock()
		return
	}
	s.queued = snapshot.Version
	s.pending = &snapshot
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// WrittenVersion is the version of the last snapshot that reached the store.
func (s *Synchronizer) WrittenVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// RemoteIDs returns the ids currently believed to be mirrored remotely.
func (s *Synchronizer) RemoteIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.remote))
	for id := range s.remote {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush blocks until nothing is queued or in flight.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.pending == nil && !s.inflight {
		s.mu.Unlock()
		return nil
	}
	waiter := make(chan struct{})
	s.idleWaiters = append(s.idleWaiters, waiter)
	s.mu.Unlock()

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes and stops the worker. Later snapshots are ignored.
func (s *Synchronizer) Close(ctx context.Context) error {
	err := s.Flush(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return err
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return err
}

func (s *Synchronizer) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for s.writeNext() {
		}
	}
}

// writeNext writes the pending snapshot, if any, and reports whether it did.
func (s *Synchronizer) writeNext() bool {
	s.mu.Lock()
	snapshot := s.pending
	s.pending = nil
	if snapshot == nil {
		s.inflight = false
		waiters := s.idleWaiters
		s.idleWaiters = nil
		s.mu.Unlock()
		for _, w := range waiters {
			close(w)
		}
		return false
	}
	s.inflight = true
	remote := make(map[string]struct{}, len(s.remote))
	for id := range s.remote {
		remote[id] = struct{}{}
	}
	s.mu.Unlock()

	ops := BuildBatch(s.collection, *snapshot, remote)
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id": s.userID,
		"version": snapshot.Version,
		"ops":     len(ops),
	})
	started := time.Now()
	err := s.writer.BatchWrite(ctx, ops)
	cancel()

	if err != nil {
		s.metrics.ObserveCartSync(metrics.ResultFailure, time.Since(started))
		s.logg.Error(ctx, "cart sync failed; remote mirror left stale", err)
		return true
	}
	s.metrics.ObserveCartSync(metrics.ResultSuccess, time.Since(started))

	next := make(map[string]struct{}, len(snapshot.Items))
	for _, item := range snapshot.Items {
		next[item.ID] = struct{}{}
	}
	s.mu.Lock()
	s.remote = next
	s.written = snapshot.Version
	s.mu.Unlock()
	s.logg.Debug(ctx, "cart synced")
	return true
}
