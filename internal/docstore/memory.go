package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/namthanhstores/storefront-backend/pkg/enums"
)

const defaultTxAttempts = 5

type memoryEntry struct {
	data    map[string]any
	version int64
}

// MemoryStore keeps documents in process. Values are normalized through JSON
// exactly like the SQL backend so decoders see the same shapes.
type MemoryStore struct {
	mu          sync.Mutex
	docs        map[string]memoryEntry
	collections map[string]map[string]struct{}
	watchers    map[string]map[*memoryWatch]struct{}
	seq         int64
	maxAttempts int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:        map[string]memoryEntry{},
		collections: map[string]map[string]struct{}{},
		watchers:    map[string]map[*memoryWatch]struct{}{},
		maxAttempts: defaultTxAttempts,
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	entry, ok := s.docs[docKey(collection, id)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	data, err := cloneJSON(entry.data)
	if err != nil {
		return nil, err
	}
	return &Document{Collection: collection, ID: id, Data: data}, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	entries := make([]memoryEntry, 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		entries = append(entries, s.docs[docKey(collection, id)])
	}
	s.mu.Unlock()

	out := []Document{}
	for i, entry := range entries {
		ok, err := matches(entry.data, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		data, err := cloneJSON(entry.data)
		if err != nil {
			return nil, err
		}
		out = append(out, Document{Collection: collection, ID: ids[i], Data: data})
	}
	return out, nil
}

func (s *MemoryStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateOps(ops); err != nil {
		return err
	}
	normalized := make([]WriteOp, len(ops))
	for i, op := range ops {
		data, err := cloneJSON(op.Data)
		if err != nil {
			return err
		}
		op.Data = data
		normalized[i] = op
	}

	s.mu.Lock()
	changed := s.applyLocked(normalized)
	s.mu.Unlock()
	s.notify(changed)
	return nil
}

// applyLocked writes ops and returns the keys whose watchers must be notified.
func (s *MemoryStore) applyLocked(ops []WriteOp) []string {
	changed := make([]string, 0, len(ops))
	for _, op := range ops {
		key := docKey(op.Collection, op.ID)
		_, exists := s.docs[key]
		switch op.Kind {
		case enums.WriteKindDelete:
			if !exists {
				continue
			}
			delete(s.docs, key)
			delete(s.collections[op.Collection], op.ID)
		case enums.WriteKindUpsert:
			s.seq++
			s.docs[key] = memoryEntry{data: op.Data, version: s.seq}
			if s.collections[op.Collection] == nil {
				s.collections[op.Collection] = map[string]struct{}{}
			}
			s.collections[op.Collection][op.ID] = struct{}{}
		}
		changed = append(changed, key)
	}
	return changed
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memoryTx{store: s, reads: map[string]int64{}}
		if err := fn(ctx, tx); err != nil {
			return err
		}

		s.mu.Lock()
		if !s.readsCurrentLocked(tx.reads) {
			s.mu.Unlock()
			continue
		}
		changed := s.applyLocked(tx.writes)
		s.mu.Unlock()
		s.notify(changed)
		return nil
	}
	return ErrConflict
}

func (s *MemoryStore) readsCurrentLocked(reads map[string]int64) bool {
	for key, version := range reads {
		if s.docs[key].version != version {
			return false
		}
	}
	return true
}

type memoryTx struct {
	store  *MemoryStore
	reads  map[string]int64
	writes []WriteOp
}

func (t *memoryTx) Get(collection, id string) (*Document, error) {
	if len(t.writes) > 0 {
		return nil, fmt.Errorf("transaction reads must precede writes")
	}
	key := docKey(collection, id)
	t.store.mu.Lock()
	entry, ok := t.store.docs[key]
	t.store.mu.Unlock()
	t.reads[key] = entry.version
	if !ok {
		return nil, ErrNotFound
	}
	data, err := cloneJSON(entry.data)
	if err != nil {
		return nil, err
	}
	return &Document{Collection: collection, ID: id, Data: data}, nil
}

func (t *memoryTx) Set(collection, id string, data map[string]any) error {
	normalized, err := cloneJSON(data)
	if err != nil {
		return err
	}
	op := WriteOp{Collection: collection, ID: id, Kind: enums.WriteKindUpsert, Data: normalized}
	if err := op.Validate(); err != nil {
		return err
	}
	t.writes = append(t.writes, op)
	return nil
}

type memoryWatch struct {
	collection string
	id         string
	onChange   func(*Document)
	wake       chan struct{}
	done       chan struct{}
	once       sync.Once
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection, id string, onChange func(*Document)) (Unsubscribe, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &memoryWatch{
		collection: collection,
		id:         id,
		onChange:   onChange,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	key := docKey(collection, id)

	s.mu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = map[*memoryWatch]struct{}{}
	}
	s.watchers[key][w] = struct{}{}
	s.mu.Unlock()

	w.wake <- struct{}{}
	go s.runWatch(w)

	return func() {
		w.once.Do(func() {
			s.mu.Lock()
			delete(s.watchers[key], w)
			if len(s.watchers[key]) == 0 {
				delete(s.watchers, key)
			}
			s.mu.Unlock()
			close(w.done)
		})
	}, nil
}

// runWatch delivers the latest state after each wake-up; bursts of writes
// coalesce into one callback.
func (s *MemoryStore) runWatch(w *memoryWatch) {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}
		select {
		case <-w.done:
			return
		default:
		}
		doc, err := s.Get(context.Background(), w.collection, w.id)
		if err != nil {
			doc = nil
		}
		w.onChange(doc)
	}
}

func (s *MemoryStore) notify(keys []string) {
	if len(keys) == 0 {
		return
	}
	s.mu.Lock()
	var targets []*memoryWatch
	for _, key := range keys {
		for w := range s.watchers[key] {
			targets = append(targets, w)
		}
	}
	s.mu.Unlock()
	for _, w := range targets {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	var all []*memoryWatch
	for _, set := range s.watchers {
		for w := range set {
			all = append(all, w)
		}
	}
	s.watchers = map[string]map[*memoryWatch]struct{}{}
	s.mu.Unlock()
	for _, w := range all {
		w.once.Do(func() { close(w.done) })
	}
	return nil
}
